package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopt-a-farmer/client-go/farmers"
)

var farmersCmd = &cobra.Command{
	Use:     "farmers",
	Short:   "Browse the farmer directory",
	Aliases: []string{"farmer"},
}

var farmersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List farmers",
	RunE: func(cmd *cobra.Command, args []string) error {
		county, _ := cmd.Flags().GetString("county")
		crop, _ := cmd.Flags().GetString("crop")
		verified, _ := cmd.Flags().GetBool("verified")
		page, _ := cmd.Flags().GetInt("page")

		list, err := farmersSvc.List(cmd.Context(), farmers.ListOptions{
			Page:         page,
			County:       county,
			CropType:     crop,
			VerifiedOnly: verified,
		})
		if err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No farmers found.")
			return nil
		}
		for _, f := range list {
			mark := " "
			if f.Verified {
				mark = "*"
			}
			fmt.Printf("%s %-24s %-12s funded %d/%d\n", mark, f.FarmName, f.County, f.FundedAmount, f.FundingGoal)
		}
		return nil
	},
}

var farmersGetCmd = &cobra.Command{
	Use:   "get <farmer-id>",
	Short: "Show one farmer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := farmersSvc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s, %s)\n", f.FarmName, f.County, f.SubCounty)
		if f.Bio != "" {
			fmt.Println(f.Bio)
		}
		fmt.Printf("Crops: %v\nFunding: %d/%d\nVerified: %v\n", f.CropTypes, f.FundedAmount, f.FundingGoal, f.Verified)
		return nil
	},
}

var adoptionsCmd = &cobra.Command{
	Use:   "adoptions",
	Short: "Manage your adoptions",
}

var adoptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your adoptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appStore.State().IsAuthenticated() {
			return errors.New("not signed in; run 'farmctl auth login'")
		}
		list, err := farmersSvc.ListAdoptions(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No adoptions yet.")
			return nil
		}
		for _, a := range list {
			fmt.Printf("%-10s farmer=%s %d %s/month (%s)\n", a.Status, a.FarmerID, a.MonthlyContribution, a.Currency, a.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var adoptionsCreateCmd = &cobra.Command{
	Use:   "create <farmer-id>",
	Short: "Adopt a farmer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appStore.State().IsAuthenticated() {
			return errors.New("not signed in; run 'farmctl auth login'")
		}
		amount, _ := cmd.Flags().GetInt64("amount")
		currency, _ := cmd.Flags().GetString("currency")
		message, _ := cmd.Flags().GetString("message")

		adoption, err := farmersSvc.CreateAdoption(cmd.Context(), farmers.AdoptionRequest{
			FarmerID:            args[0],
			MonthlyContribution: amount,
			Currency:            currency,
			Message:             message,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Adoption %s created (%s).\n", adoption.ID, adoption.Status)
		return nil
	},
}

func init() {
	farmersListCmd.Flags().String("county", "", "filter by county")
	farmersListCmd.Flags().String("crop", "", "filter by crop type")
	farmersListCmd.Flags().Bool("verified", false, "verified farmers only")
	farmersListCmd.Flags().Int("page", 0, "page number")

	adoptionsCreateCmd.Flags().Int64("amount", 0, "monthly contribution")
	adoptionsCreateCmd.Flags().String("currency", "KES", "contribution currency")
	adoptionsCreateCmd.Flags().String("message", "", "message to the farmer")

	farmersCmd.AddCommand(farmersListCmd, farmersGetCmd)
	adoptionsCmd.AddCommand(adoptionsListCmd, adoptionsCreateCmd)
	rootCmd.AddCommand(farmersCmd, adoptionsCmd)
}

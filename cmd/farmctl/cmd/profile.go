package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopt-a-farmer/client-go/domain"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch the profile from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appStore.State().IsAuthenticated() {
			return errors.New("not signed in; run 'farmctl auth login'")
		}
		user, err := authSvc.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\nRole: %s\nPhone: %s\n", user.FullName(), user.Email, user.Role, user.PhoneNumber)
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appStore.State().IsAuthenticated() {
			return errors.New("not signed in; run 'farmctl auth login'")
		}

		var update domain.UserUpdate
		changed := false
		if cmd.Flags().Changed("first-name") {
			v, _ := cmd.Flags().GetString("first-name")
			update.FirstName = &v
			changed = true
		}
		if cmd.Flags().Changed("last-name") {
			v, _ := cmd.Flags().GetString("last-name")
			update.LastName = &v
			changed = true
		}
		if cmd.Flags().Changed("phone") {
			v, _ := cmd.Flags().GetString("phone")
			update.PhoneNumber = &v
			changed = true
		}
		if !changed {
			return errors.New("nothing to update; pass --first-name, --last-name, or --phone")
		}

		user, err := authSvc.UpdateProfile(cmd.Context(), update)
		if err != nil {
			return err
		}

		// Tokens stay untouched; only the cached user moves.
		appStore.ReplaceUser(user)
		fmt.Println("Profile updated.")
		return nil
	},
}

func init() {
	profileUpdateCmd.Flags().String("first-name", "", "new first name")
	profileUpdateCmd.Flags().String("last-name", "", "new last name")
	profileUpdateCmd.Flags().String("phone", "", "new phone number")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

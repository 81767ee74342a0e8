package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopt-a-farmer/client-go/guard"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect route authorization",
}

var routesCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Evaluate a route against the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := appRouter.Evaluate(appStore.State(), args[0])
		fmt.Printf("Decision: %s\n", res.Decision)
		if res.Redirect != "" {
			fmt.Printf("Redirect: %s\n", res.Redirect)
		}
		if res.Decision == guard.DecisionAuthorized {
			fmt.Println("This route would render for you.")
		}
		if res.Decision == guard.DecisionUnauthorized {
			fmt.Println("Your role does not grant access to this route.")
		}
		return nil
	},
}

var routesLandingCmd = &cobra.Command{
	Use:   "landing",
	Short: "Show your default post-login landing route",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := appStore.State()
		if !state.IsAuthenticated() {
			fmt.Println("Not signed in; landing route is", guard.LoginPath)
			return nil
		}
		fmt.Println(guard.DefaultLandingRouteFor(state.Role()))
		return nil
	},
}

func init() {
	routesCmd.AddCommand(routesCheckCmd, routesLandingCmd)
	rootCmd.AddCommand(routesCmd)
}

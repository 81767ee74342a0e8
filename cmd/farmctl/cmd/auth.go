package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/auth"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/guard"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in and out of the platform",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appStore.State().IsAuthenticated() {
			fmt.Print("Already signed in. Sign in again? (yes/no): ")
			reader := bufio.NewReader(os.Stdin)
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(confirm)) != "yes" {
				fmt.Println("Login cancelled.")
				return nil
			}
		}

		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			fmt.Print("Email: ")
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			email = strings.TrimSpace(line)
		}

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		creds, err := authSvc.Login(cmd.Context(), auth.LoginRequest{Email: email, Password: password})
		if err != nil {
			var apiErr *adopt.APIError
			if errors.As(err, &apiErr) && errors.Is(err, adopt.ErrEmailNotVerified) {
				fmt.Printf("Your email %s is not verified yet. Check your inbox for the verification link.\n", apiErr.Email)
				return nil
			}
			if errors.Is(err, adopt.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			return err
		}

		if err := appStore.SetSession(creds.User, creds.Pair.AccessToken, creds.Pair.RefreshToken); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}

		redirect, _ := cmd.Flags().GetString("redirect")
		fmt.Printf("Signed in as %s (%s).\n", creds.User.Email, creds.User.Role)
		fmt.Printf("Landing route: %s\n", guard.PostLoginTarget(redirect, creds.User.Role))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !appStore.State().IsAuthenticated() {
			fmt.Println("Not signed in.")
			return nil
		}
		appStore.Clear()
		fmt.Println("Signed out. Local session cleared.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := appStore.State()
		if !state.IsAuthenticated() {
			fmt.Println("Not signed in.")
			return nil
		}

		user := state.User
		fmt.Printf("User:  %s <%s>\n", user.FullName(), user.Email)
		fmt.Printf("Role:  %s\n", user.Role)
		fmt.Printf("Admin: %v\n", state.IsAdmin())
		if exp := domain.TokenExpiry(state.AccessToken); !exp.IsZero() {
			fmt.Printf("Token expires: %s (%s from now)\n",
				exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		firstName, _ := cmd.Flags().GetString("first-name")
		lastName, _ := cmd.Flags().GetString("last-name")
		email, _ := cmd.Flags().GetString("email")
		roleFlag, _ := cmd.Flags().GetString("role")
		phone, _ := cmd.Flags().GetString("phone")

		role, err := domain.ParseRole(roleFlag)
		if err != nil {
			return fmt.Errorf("%w (valid: %v)", err, domain.Roles)
		}

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		creds, err := authSvc.Register(cmd.Context(), auth.RegisterRequest{
			FirstName:   firstName,
			LastName:    lastName,
			Email:       email,
			Password:    password,
			Role:        role,
			PhoneNumber: phone,
		})
		if err != nil {
			return err
		}

		if err := appStore.SetSession(creds.User, creds.Pair.AccessToken, creds.Pair.RefreshToken); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		fmt.Printf("Account created. Signed in as %s (%s).\n", creds.User.Email, creds.User.Role)
		fmt.Printf("Landing route: %s\n", guard.DefaultLandingRouteFor(creds.User.Role))
		return nil
	},
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Request a password reset email",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return errors.New("email is required via --email")
		}
		msg, err := authSvc.ForgotPassword(cmd.Context(), auth.ForgotPasswordRequest{Email: email})
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password using a reset token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return errors.New("reset token is required via --token")
		}
		password, err := readPassword("New password: ")
		if err != nil {
			return err
		}
		msg, err := authSvc.ResetPassword(cmd.Context(), auth.ResetPasswordRequest{Token: token, Password: password})
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func init() {
	loginCmd.Flags().String("email", "", "email address (prompts when omitted)")
	loginCmd.Flags().String("redirect", "", "route to land on after login")

	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	registerCmd.Flags().String("email", "", "email address")
	registerCmd.Flags().String("role", "adopter", "platform role")
	registerCmd.Flags().String("phone", "", "phone number (E.164)")

	forgotPasswordCmd.Flags().String("email", "", "account email address")
	resetPasswordCmd.Flags().String("token", "", "reset token from the email")

	authCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, registerCmd, forgotPasswordCmd, resetPasswordCmd)
	rootCmd.AddCommand(authCmd)
}

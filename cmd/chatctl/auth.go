package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (required)")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a session token",
	Long: `Log in with email and password and print the session token.

Examples:
  export CHATCTL_TOKEN=$(chatctl login --email me@example.com --password secret)`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := newClient().Login(cmd.Context(), loginEmail, loginPassword)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
		return nil
	},
}

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Create a guest session and print its token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := newClient().Guest(cmd.Context())
		if err != nil {
			return fmt.Errorf("guest login failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
		return nil
	},
}

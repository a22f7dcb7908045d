package main

import (
	"fmt"
	"os"
	"time"

	"creditslot/internal/auth"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Int64("user", 0, "User ID to embed in the token")
	tokenCmd.Flags().String("role", auth.RoleCustomer, "Role: customer, merchant or admin")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	tokenCmd.Flags().String("secret", "", "Signing secret (defaults to JWT_SECRET)")
	_ = tokenCmd.MarkFlagRequired("user")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an access token for local testing and operations",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	secret, _ := cmd.Flags().GetString("secret")

	switch role {
	case auth.RoleCustomer, auth.RoleMerchant, auth.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if userID <= 0 {
		return fmt.Errorf("user must be a positive id")
	}
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}

	tok, err := auth.GenerateAccessToken(userID, role, secret, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/clinic-settlement/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		secret string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for calling the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			r := auth.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.GenerateToken(args[0], r, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleStaff), "staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")

	return cmd
}

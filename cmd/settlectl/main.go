// Command settlectl is the operator tool for the settlement service: schema
// migrations, gateway signature checks, local tokens and gateway event
// inspection.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

type rootOptions struct {
	databaseURL   string
	migrationsDir string
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "Operate the clinic settlement service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	rootCmd.PersistentFlags().StringVar(&opts.migrationsDir, "migrations-dir", envOr("MIGRATIONS_DIR", "migrations"), "directory holding *.up.sql / *.down.sql")

	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(gatewayEventsCmd(opts))

	return rootCmd
}

func (o *rootOptions) requireDatabase() error {
	if o.databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

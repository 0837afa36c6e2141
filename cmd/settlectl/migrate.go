package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/clinic-settlement/internal/repository"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.requireDatabase()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repository.Migrate(opts.databaseURL, opts.migrationsDir); err != nil {
				return err
			}
			return printVersion(cmd, opts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (all of them when steps is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			if err := repository.MigrateDown(opts.databaseURL, opts.migrationsDir, steps); err != nil {
				return err
			}
			return printVersion(cmd, opts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, opts)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, opts *rootOptions) error {
	v, dirty, err := repository.MigrationVersion(opts.databaseURL, opts.migrationsDir)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}

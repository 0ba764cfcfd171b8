package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beanhop/backend/internal/platform/migrations"
	"github.com/beanhop/backend/internal/seed"
)

func migrateCmd() *cobra.Command {
	var (
		dsn     string
		skipRLS bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to a Postgres database",
		Long: `Apply every embedded schema file in order. The files are idempotent.

Examples:
  beanhop migrate --dsn postgres://localhost/beanhop?sslmode=disable
  beanhop migrate --skip-rls`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.DatabaseURL
			}

			db, err := openDirect(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			var opts []migrations.Option
			if skipRLS {
				opts = append(opts, migrations.SkipRowLevelSecurity())
			}
			opts = append(opts, migrations.OnApply(func(name string) {
				log.WithField("migration", name).Info("applied")
			}))
			return migrations.Apply(cmd.Context(), db, opts...)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to DATABASE_URL)")
	cmd.Flags().BoolVar(&skipRLS, "skip-rls", false, "skip row-level security policies (plain Postgres without Supabase auth)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalog with the demo shops and menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := seed.NewSeeder(a.repo, log).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d shops, %d menu items\n",
				res.Message, res.ShopsCreated, res.MenuItemsCreated)
			return nil
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the setup SQL for the Supabase SQL editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := migrations.SetupSQL()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), sql)
			return err
		},
	}
}

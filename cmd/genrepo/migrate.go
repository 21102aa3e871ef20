package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/genrepo/internal/config"
	"github.com/jbweber/homelab/genrepo/internal/migrations"
)

type migrateOptions struct {
	*rootOptions
	Down bool
}

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &migrateOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the entity store schema",
		Long: `Create or update the entity store schema.

For sqlite every pending migration is applied, or with --down the latest
applied one is reverted. Postgres creates its schema on connect and memory
has none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Down, "down", false, "revert the most recent migration")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *migrateOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch opts.cfg.Backend {
	case config.BackendMemory:
		fmt.Fprintln(out, "memory backend has no schema")
		return nil
	case config.BackendPostgres:
		if opts.Down {
			return fmt.Errorf("--down is only supported for sqlite")
		}
		backend, err := opts.cfg.OpenBackend(ctx, opts.logger)
		if err != nil {
			return err
		}
		defer backend.Close()
		fmt.Fprintln(out, "postgres schema is up to date")
		return nil
	}

	db, err := opts.cfg.OpenDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.New(db).WithLogger(opts.logger)

	if opts.Down {
		version, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "reverted migration %d\n", version)
		return nil
	}

	applied, err := migrator.RunMigrations(ctx)
	if err != nil {
		return err
	}
	version, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migrations, schema version %d\n", applied, version)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/repository"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample cities, companies and users",
		Long: `Insert sample cities, companies and users.

Nothing is written when users already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := opts.cfg.OpenBackend(ctx, opts.logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			n, err := seed(ctx, backend, opts.logger)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store already seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entities\n", n)
			return nil
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

// seed writes the sample data set in one unit of work and returns the
// number of stored entities.
func seed(ctx context.Context, backend store.Backend, logger *slog.Logger) (int, error) {
	m := domain.NewModel(store.NewSession(backend, store.WithLogger(logger)))
	users := repository.NewUserRepository(m)

	seeded, err := users.Any(ctx, nil)
	if err != nil {
		return 0, err
	}
	if seeded {
		return 0, nil
	}

	if err := repository.NewCityRepository(m).Add(ctx,
		&domain.City{ID: 1, Name: "Springfield"},
		&domain.City{ID: 2, Name: "Shelbyville"},
	); err != nil {
		return 0, err
	}

	if err := repository.NewCompanyRepository(m).Add(ctx,
		&domain.Company{ID: 1, Name: "Acme", CityID: int64Ptr(1)},
		&domain.Company{ID: 2, Name: "Globex", CityID: int64Ptr(2)},
		&domain.Company{ID: 3, Name: "Initech"},
	); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if err := users.Add(ctx,
		&domain.User{ID: 1, Name: "alice", Email: "alice@example.com", CompanyID: int64Ptr(1), CreatedAt: now},
		&domain.User{ID: 2, Name: "bob", Email: "bob@example.com", CompanyID: int64Ptr(2), CreatedAt: now},
		&domain.User{ID: 3, Name: "carol", Email: "carol@example.com", CompanyID: int64Ptr(1), CreatedAt: now},
		&domain.User{ID: 4, Name: "dave", Email: "dave@example.com", CompanyID: int64Ptr(3), CreatedAt: now},
		&domain.User{ID: 5, Name: "erin", Email: "erin@example.com", CreatedAt: now},
	); err != nil {
		return 0, err
	}

	return users.SaveChanges(ctx)
}

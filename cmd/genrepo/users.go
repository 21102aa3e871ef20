package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/repository"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

type usersOptions struct {
	*rootOptions
	Sort    string
	Include []string
	Company int64
}

func newUsersCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &usersOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Long: `List users through the repository.

Example:
  genrepo users --sort Name:desc,ID --include Company`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsers(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort spec, e.g. Name:desc,ID")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "navigation properties to load")
	cmd.Flags().Int64Var(&opts.Company, "company", 0, "only users of this company")

	return cmd
}

func runUsers(cmd *cobra.Command, opts *usersOptions) error {
	ctx := cmd.Context()

	spec, err := query.ParseSortSpec(opts.Sort)
	if err != nil {
		return err
	}
	var repoOpts []repository.Option
	if len(spec) > 0 {
		repoOpts = append(repoOpts, repository.WithSort(spec...))
	}
	if len(opts.Include) > 0 {
		repoOpts = append(repoOpts, repository.WithInclude(opts.Include...))
	}

	backend, err := opts.cfg.OpenBackend(ctx, opts.logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	repo := repository.NewUserRepository(domain.NewModel(store.NewSession(backend, store.WithLogger(opts.logger))))

	var users []*domain.User
	if opts.Company > 0 {
		users, err = repo.FindByCompany(ctx, opts.Company, repoOpts...)
	} else {
		users, err = repo.SelectByCondition(ctx, nil, repoOpts...)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{"ID", "NAME", "EMAIL", "COMPANY"}, "\t"))
	for _, u := range users {
		company := "-"
		switch {
		case u.Company != nil:
			company = u.Company.Name
		case u.CompanyID != nil:
			company = fmt.Sprint(*u.CompanyID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, company)
	}
	return tw.Flush()
}

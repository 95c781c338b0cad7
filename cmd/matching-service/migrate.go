package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobmate/matching-service/internal/db"
)

func newMigrateCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, done, err := o.migrator(cmd)
				if err != nil {
					return err
				}
				defer done()
				versions, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				if len(versions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				}
				for _, v := range versions {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %05d\n", v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, done, err := o.migrator(cmd)
				if err != nil {
					return err
				}
				defer done()
				v, err := m.Down(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %05d\n", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, done, err := o.migrator(cmd)
				if err != nil {
					return err
				}
				defer done()
				states, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED\tPATH")
				for _, s := range states {
					fmt.Fprintf(tw, "%05d\t%t\t%s\n", s.Version, s.Applied, s.Path)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

// migrator connects to Postgres only; migrations need none of the matching
// dependencies.
func (o *rootOptions) migrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPostgresPool(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	m, err := db.NewMigrator(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return m, func() {
		pool.Close()
		_ = log.Sync()
	}, nil
}

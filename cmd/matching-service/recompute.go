package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type recomputeOptions struct {
	user    string
	refresh bool
}

func newRecomputeCmd(o *rootOptions) *cobra.Command {
	ro := &recomputeOptions{}
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute matches once and exit",
		Long: `Recompute matches for one user (--user) and print the run summary,
or for every user with an active resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.recompute(cmd, ro)
		},
	}
	cmd.Flags().StringVarP(&ro.user, "user", "u", "", "recompute a single user (UUID)")
	cmd.Flags().BoolVar(&ro.refresh, "refresh-embeddings", false, "re-embed stale job vectors first")
	return cmd
}

func (o *rootOptions) recompute(cmd *cobra.Command, ro *recomputeOptions) error {
	var userID uuid.UUID
	if ro.user != "" {
		id, err := uuid.Parse(ro.user)
		if err != nil {
			return fmt.Errorf("--user: %w", err)
		}
		userID = id
	}

	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if ro.refresh {
		n, err := a.svc.RefreshJobEmbeddings(ctx)
		if err != nil {
			return err
		}
		log.Info("job embeddings refreshed", zap.Int("count", n))
	}

	if ro.user == "" {
		n, err := a.svc.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d users\n", n)
		return nil
	}

	summary, _, err := a.svc.ComputeMatches(ctx, userID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"pickme-intel/internal/credits"

	"github.com/spf13/cobra"
)

var errDriftFound = errors.New("ledger drift found")

func reconcileCommand(c *cli) *cobra.Command {
	var officerID string
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached officer balances with the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (officerID != "") == all {
				return errors.New("exactly one of --officer or --all is required")
			}
			a, err := newApp(cmd.Context(), c.cfg, c.log, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ids := []string{officerID}
			if all {
				if ids, err = allOfficerIDs(cmd.Context(), a.credits); err != nil {
					return err
				}
			}
			drifted, err := reconcileOfficers(cmd.Context(), a.credits, ids, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			c.log.Info("reconciliation finished", "officers", len(ids), "drifted", drifted)
			if drifted > 0 {
				return fmt.Errorf("%w: %d of %d officers", errDriftFound, drifted, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&officerID, "officer", "", "officer id to reconcile")
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every officer")
	return cmd
}

func allOfficerIDs(ctx context.Context, svc *credits.Service) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		p, err := svc.ListOfficers(ctx, credits.OfficerQuery{Page: page, Limit: credits.MaxPageLimit})
		if err != nil {
			return nil, err
		}
		for _, o := range p.Officers {
			ids = append(ids, o.ID)
		}
		if page >= p.Pagination.Pages {
			return ids, nil
		}
	}
}

// reconcileOfficers writes one JSON report per officer and returns how many drifted.
func reconcileOfficers(ctx context.Context, svc *credits.Service, ids []string, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	drifted := 0
	for _, id := range ids {
		rec, err := svc.Reconcile(ctx, id)
		switch {
		case errors.Is(err, credits.ErrConsistencyViolation):
			drifted++
		case err != nil:
			return drifted, fmt.Errorf("reconcile %s: %w", id, err)
		}
		if err := enc.Encode(rec); err != nil {
			return drifted, err
		}
	}
	return drifted, nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"synthgear/internal/ledger"
)

type historyRun struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Session     string   `json:"session"`
	Acquisition string   `json:"acquisition"`
	Status      string   `json:"status"`
	AgeMonths   *int     `json:"age_months"`
	AgeSource   string   `json:"age_source"`
	Sex         string   `json:"sex"`
	Error       string   `json:"error,omitempty"`
	StartedAt   string   `json:"started_at"`
	Duration    string   `json:"duration,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded gear runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if !cfg.Ledger.Enabled {
				fmt.Fprintln(out, "Run ledger is disabled")
				return nil
			}
			if _, err := os.Stat(cfg.Ledger.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				views := make([]historyRun, 0, len(runs))
				for _, run := range runs {
					views = append(views, historyView(run))
				}
				return writeJSON(cmd, views)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			headers := []string{"Started", "Subject", "Session", "Acquisition", "Status", "Age", "Source", "Sex", "Duration", "Run"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				view := historyView(run)
				age := "NA"
				if view.AgeMonths != nil {
					age = strconv.Itoa(*view.AgeMonths)
				}
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					view.Subject,
					view.Session,
					view.Acquisition,
					view.Status,
					age,
					view.AgeSource,
					view.Sex,
					view.Duration,
					shortID(view.ID),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func historyView(run ledger.Run) historyRun {
	view := historyRun{
		ID:          run.ID,
		Subject:     run.Subject,
		Session:     run.Session,
		Acquisition: run.Acquisition,
		Status:      string(run.Status),
		AgeMonths:   run.AgeMonths,
		AgeSource:   run.AgeSource,
		Sex:         run.Sex,
		Error:       run.ErrorMessage,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		view.Duration = run.Duration().Round(time.Second).String()
	}
	for _, o := range run.Outputs {
		view.Outputs = append(view.Outputs, o.Path)
	}
	return view
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

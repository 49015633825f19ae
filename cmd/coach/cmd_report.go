package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"sales-coach-go/internal/actionable"
	"sales-coach-go/internal/aggregator"
	"sales-coach-go/internal/types"
)

// Report is the aggregate view printed by `coach report` and served on /report.
type Report struct {
	Insight    aggregator.Insight    `json:"insight"`
	ActionCard actionable.ActionCard `json:"action_card"`
}

func buildReport(entries []types.LogEntry) Report {
	ins := aggregator.Aggregate(entries)
	return Report{Insight: ins, ActionCard: actionable.Generate(ins)}
}

func newReportCommand(build func() (*app, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise logged calls and suggest one coaching action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.entries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(buildReport(entries))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "only the most recent N calls (0 = all)")
	return cmd
}

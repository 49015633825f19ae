package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"sales-coach-go/internal/dataset"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

func newBatchCommand(build func() (*app, error)) *cobra.Command {
	var datasetPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process the call recordings listed in an xlsx workbook, one after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := dataset.Load(datasetPath)
			if err != nil {
				return fmt.Errorf("load dataset %s: %w", datasetPath, err)
			}
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()

			logDatasetSummary(a.log, datasetPath, dataset.Summarize(records))

			ok, failed := runBatch(cmd.Context(), cmd.OutOrStdout(), a.proc, records, limit)
			fmt.Fprintf(cmd.OutOrStdout(), "\nProcessed %d calls: %d ok, %d failed\n", ok+failed, ok, failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "calls.xlsx", "xlsx workbook with an audio URL column")
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most this many rows (0 = all)")
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, p pipeline, records []types.CallRecord, limit int) (ok, failed int) {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		res := p.ProcessSingleURL(ctx, rec.AudioURL)
		fmt.Fprintf(out, "\n=== %s (%s) ===", rec.CallID, rec.Agent)
		printResult(out, res)
		if res.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

func logDatasetSummary(log *logger.Logger, path string, s dataset.Summary) {
	log.WithField("dataset_path", path).
		WithField("total_calls", s.TotalCalls).
		WithField("by_call_type", s.ByCallType).
		WithField("by_agent", s.ByAgent).
		WithField("top_agents", s.TopAgents).
		Info("dataset loaded")
}

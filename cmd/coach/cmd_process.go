package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCommand(build func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "process URL [URL...]",
		Short: "Process one or more call recordings and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, u := range args {
				res := a.proc.ProcessSingleURL(cmd.Context(), u)
				printResult(cmd.OutOrStdout(), res)
				if !res.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d calls failed", failed, len(args))
			}
			return nil
		},
	}
}

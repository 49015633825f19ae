package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRunCommand(build func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Interactive loop: paste call recording URLs one at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "--- Sales call coach ---")
			fmt.Fprintf(out, "Winning phrases: %s\n", a.cfg.Storage.ExemplarFile)
			fmt.Fprintf(out, "Feedback log:    %s\n", a.cfg.Storage.FeedbackLogFile)
			fmt.Fprintf(out, "Daily log:       %s\n", a.cfg.Storage.DailyLogFile)

			in := cmd.InOrStdin()
			return runLoop(cmd.Context(), in, out, isTerminal(in), a.proc)
		},
	}
}

// runLoop reads one URL per line and processes it. "exit" or EOF stops the
// loop; blank lines are ignored. A failed run never stops the loop.
func runLoop(ctx context.Context, in io.Reader, out io.Writer, prompt bool, p pipeline) error {
	sc := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "\nEnter audio URL (or 'exit'): ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		printResult(out, p.ProcessSingleURL(ctx, line))
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

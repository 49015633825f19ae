package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:   "coach",
		Short: "Sales call coach - analyse recorded calls and coach agents",
		Long: `coach downloads a recorded sales call, has Gemini classify and score it,
saves winning phrases from successful calls and writes tailored feedback
for the agent to the call logs.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides COACH_CONFIG)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv("COACH_CONFIG", configPath)
		}
	}

	build := func() (*app, error) { return newApp(newBaseLogger(logLevel)) }

	cmd.AddCommand(newRunCommand(build))
	cmd.AddCommand(newProcessCommand(build))
	cmd.AddCommand(newBatchCommand(build))
	cmd.AddCommand(newServeCommand(build))
	cmd.AddCommand(newReportCommand(build))
	return cmd
}

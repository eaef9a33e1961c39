package main

import (
	"github.com/spf13/cobra"
)

var (
	// pathFlag is the codebase root; defaults to the working directory.
	pathFlag string
	// jsonFlag switches command output to JSON.
	jsonFlag bool
	// logLevelFlag sets log verbosity (debug, info, warn, error).
	logLevelFlag string
	// verbosityFlag raises verbosity per -v; overrides --log-level when set.
	verbosityFlag int
	// quietFlag suppresses all log output.
	quietFlag bool
	// logFileFlag redirects logs from stderr to a file.
	logFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "miow",
	Short: "miow - codebase context compiler",
	Long: `miow indexes a codebase into a knowledge graph and compiles, for a given
task description, a single bounded-size context document of the symbols,
types, conventions, and patterns relevant to that task.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pathFlag, "path", "p", "", "Codebase root (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().CountVarP(&verbosityFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Write logs to a file instead of stderr")
}

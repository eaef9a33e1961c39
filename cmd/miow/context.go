package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var contextSelected []string

var contextCmd = &cobra.Command{
	Use:   "context <prompt>",
	Short: "Compile a bounded context document for a task",
	Long: `Plans and runs the analysis workers for the task prompt, then compiles
their output into one token-budgeted context document on stdout.

With --select, compilation is restricted to the given files (or biased
toward them when compile.selectedFilesSoft is set).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().StringSliceVar(&contextSelected, "select", nil,
		"Restrict compilation to these files (repeatable or comma-separated)")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	logger := newLogger()
	prompt := strings.Join(args, " ")

	eng, err := getEngine(root, logger)
	if err != nil {
		return err
	}

	doc, err := eng.GenerateContext(newContext(), prompt, contextSelected)
	if err != nil {
		return err
	}
	fmt.Print(doc)
	return nil
}

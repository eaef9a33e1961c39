package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var relevantCmd = &cobra.Command{
	Use:   "relevant <prompt>",
	Short: "Rank indexed symbols against a task prompt",
	Long: `Runs a semantic relevance query against the vector index and prints the
symbols most related to the task description, most relevant first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRelevant,
}

func init() {
	rootCmd.AddCommand(relevantCmd)
}

func runRelevant(cmd *cobra.Command, args []string) error {
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

	files, err := eng.GetRelevantFiles(newContext(), prompt)
	if err != nil {
		return err
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(files)
	}
	if len(files) == 0 {
		fmt.Println("No relevant symbols found (is the codebase indexed and the embedding provider configured?)")
		return nil
	}
	for _, f := range files {
		fmt.Printf("%.3f  %-12s %-30s %s\n", f.RelevanceScore, f.SymbolKind, f.SymbolName, f.Path)
	}
	return nil
}

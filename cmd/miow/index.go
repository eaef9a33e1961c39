package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the codebase into the knowledge graph",
	Long: `Walks the codebase, extracts symbols into the knowledge graph and vector
index, and reports the totals. Unchanged files are skipped unless --force
is given.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "Reindex every file, changed or not")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	logger := newLogger()

	eng, err := getEngine(root, logger)
	if err != nil {
		return err
	}

	stats, err := eng.IndexCodebase(newContext(), indexForce)
	if err != nil {
		return err
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}
	fmt.Printf("Indexed %d files, %d symbols", stats.TotalFiles, stats.TotalSymbols)
	if stats.ParseErrors > 0 {
		fmt.Printf(" (%d files skipped with errors)", stats.ParseErrors)
	}
	fmt.Println()
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize miow configuration",
	Long:  "Creates a .miow/ directory with default configuration under the codebase root.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	configPath := filepath.Join(root, ".miow", "config.json")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		// Already initialized is success; reruns stay CI-friendly.
		fmt.Printf("miow already initialized (%s)\n", configPath)
		fmt.Println("Run 'miow init --force' to overwrite.")
		return nil
	}

	if err := config.Save(root, config.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Configuration written to %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set the provider API key (OPENAI_API_KEY by default)")
	fmt.Println("  2. Run 'miow index' to build the knowledge graph")
	fmt.Println("  3. Run 'miow context \"your task\"' to compile context")
	return nil
}

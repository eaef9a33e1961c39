package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Show the detected technology profile",
	Long: `Detects (or returns the cached) technology profile of the codebase:
language, framework, package manager, and notable libraries.`,
	RunE: runSignature,
}

func init() {
	rootCmd.AddCommand(signatureCmd)
}

func runSignature(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	logger := newLogger()

	eng, err := getEngine(root, logger)
	if err != nil {
		return err
	}

	sig, err := eng.GetSignature(newContext())
	if err != nil {
		return err
	}

	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(sig)
	}
	fmt.Printf("Language:    %s\n", sig.Language)
	fmt.Printf("Framework:   %s\n", sig.Framework)
	fmt.Printf("Manager:     %s\n", sig.PackageManager)
	fmt.Printf("UI library:  %s\n", sig.UILibrary)
	fmt.Printf("Validation:  %s\n", sig.ValidationLibrary)
	fmt.Printf("Auth:        %s\n", sig.AuthLibrary)
	fmt.Printf("Description: %s\n", sig.Describe())
	return nil
}

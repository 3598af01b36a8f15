package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/caseforge/internal/cli"
	"github.com/cloo-solutions/caseforge/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "caseforge",
		Short: "Caseforge CLI - grounded test generation from project docs",
		Long: `Caseforge CLI builds per-project knowledge bases from documentation and
generates grounded test cases and browser scripts from them.

Environment variables:
  CASEFORGE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.BuildCmd())
	rootCmd.AddCommand(client.RetrieveCmd())
	rootCmd.AddCommand(client.CasesCmd())
	rootCmd.AddCommand(client.ScriptCmd())
	rootCmd.AddCommand(client.ChunksCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

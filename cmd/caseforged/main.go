package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/caseforge/internal/cli"
	"github.com/cloo-solutions/caseforge/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caseforged",
		Short: "Caseforge daemon",
		Long:  "Caseforge daemon for running the knowledge base and generation API server",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

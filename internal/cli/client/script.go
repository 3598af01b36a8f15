package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ScriptResponse represents the script generation API response.
type ScriptResponse struct {
	Status     string   `json:"status"`
	Script     string   `json:"script"`
	Selectors  []string `json:"selectors,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}

// ScriptCmd creates the script command.
func ScriptCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "script <query>",
		Short: "Generate a browser script",
		Long:  "Generates a browser automation script grounded on a project's documentation and page artifact.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runScript(cmd, projectID, args[0], outputJSON)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runScript(cmd *cobra.Command, projectID, query string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/scripts/generate", GenerateRequest{
		ProjectID: projectID,
		Query:     query,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	var scriptResp ScriptResponse
	if err := json.Unmarshal(resp.Data, &scriptResp); err != nil {
		return fmt.Errorf("failed to parse generation response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(scriptResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Status: %s\n", scriptResp.Status)
	if scriptResp.Diagnostic != "" {
		fmt.Printf("Diagnostic: %s\n", scriptResp.Diagnostic)
	}
	if scriptResp.Script != "" {
		fmt.Println()
		fmt.Println(scriptResp.Script)
	}
	return nil
}

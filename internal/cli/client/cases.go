package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// GenerateRequest represents a grounded generation API request.
type GenerateRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
}

// TestCaseResult represents one generated test case.
type TestCaseResult struct {
	ID             string   `json:"id"`
	Feature        string   `json:"feature"`
	Scenario       string   `json:"scenario"`
	Expected       string   `json:"expected_result"`
	Steps          []string `json:"steps"`
	Classification string   `json:"classification"`
	GroundedOn     []string `json:"grounded_on"`
}

// TestCasesResponse represents the test case generation API response.
type TestCasesResponse struct {
	Cases []TestCaseResult `json:"test_cases"`
}

// CasesCmd creates the cases command.
func CasesCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "cases <query>",
		Short: "Generate test cases",
		Long:  "Generates evidence-grounded test cases from a project's documentation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runCases(cmd, projectID, args[0], outputJSON)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runCases(cmd *cobra.Command, projectID, query string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/testcases/generate", GenerateRequest{
		ProjectID: projectID,
		Query:     query,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	var casesResp TestCasesResponse
	if err := json.Unmarshal(resp.Data, &casesResp); err != nil {
		return fmt.Errorf("failed to parse generation response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(casesResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Generated %d test cases:\n\n", len(casesResp.Cases))
	for i, tc := range casesResp.Cases {
		fmt.Printf("%s [%s] %s\n", tc.ID, tc.Classification, tc.Scenario)
		for j, step := range tc.Steps {
			fmt.Printf("   %d. %s\n", j+1, step)
		}
		if tc.Expected != "" {
			fmt.Printf("   Expected: %s\n", tc.Expected)
		}
		fmt.Printf("   Grounded on: %s\n", strings.Join(tc.GroundedOn, ", "))
		if i < len(casesResp.Cases)-1 {
			fmt.Println()
		}
	}
	return nil
}

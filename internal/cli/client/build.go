package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentResult mirrors the per-document build report.
type DocumentResult struct {
	Document string `json:"document"`
	Format   string `json:"format"`
	Chunks   int    `json:"chunks"`
}

// BuildResponse represents the build API response.
type BuildResponse struct {
	ProjectID string           `json:"project_id"`
	Documents []DocumentResult `json:"documents"`
	Chunks    int              `json:"chunks"`
}

// BuildCmd creates the build command.
func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <file> [file...]",
		Short: "Build a knowledge base",
		Long:  "Uploads documents and builds a fresh project knowledge base from them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runBuild(cmd, args, outputJSON)
		},
	}
	return cmd
}

func runBuild(cmd *cobra.Command, files []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.PostFiles("/projects/build", files)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	var buildResp BuildResponse
	if err := json.Unmarshal(resp.Data, &buildResp); err != nil {
		return fmt.Errorf("failed to parse build response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(buildResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Project: %s\n", buildResp.ProjectID)
	fmt.Printf("Indexed %d chunks from %d documents:\n", buildResp.Chunks, len(buildResp.Documents))
	for _, doc := range buildResp.Documents {
		fmt.Printf("  %s (%s): %d chunks\n", doc.Document, doc.Format, doc.Chunks)
	}
	return nil
}

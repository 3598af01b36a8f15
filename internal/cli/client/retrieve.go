package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RetrieveRequest represents the retrieve API request.
type RetrieveRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

// EvidenceResult represents one retrieved chunk.
type EvidenceResult struct {
	ChunkID  string  `json:"chunk_id"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
	Metadata struct {
		SourceDocument string `json:"source_document"`
		ChunkIndex     int    `json:"chunk_index"`
	} `json:"metadata"`
}

// RetrieveResponse represents the retrieve API response.
type RetrieveResponse struct {
	ProjectID string           `json:"project_id"`
	Results   []EvidenceResult `json:"results"`
	Count     int              `json:"count"`
}

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	var (
		projectID string
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve nearest chunks",
		Long:  "Retrieves the chunks nearest to the query from a project's index.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRetrieve(cmd, projectID, args[0], topK, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runRetrieve(cmd *cobra.Command, projectID, query string, topK int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retrieve", RetrieveRequest{
		ProjectID: projectID,
		Query:     query,
		TopK:      topK,
	})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	var retrieveResp RetrieveResponse
	if err := json.Unmarshal(resp.Data, &retrieveResp); err != nil {
		return fmt.Errorf("failed to parse retrieve response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(retrieveResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if retrieveResp.Count == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d chunks:\n\n", retrieveResp.Count)
	for i, result := range retrieveResp.Results {
		fmt.Printf("%d. %s (distance %.4f)\n", i+1, result.ChunkID, result.Distance)
		text := result.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("   %s\n", text)
		if i < len(retrieveResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}

package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ChunkResult represents one stored chunk in the preview listing.
type ChunkResult struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Metadata struct {
		SourceDocument string `json:"source_document"`
		ChunkIndex     int    `json:"chunk_index"`
	} `json:"metadata"`
}

// ChunksResponse represents the chunk preview API response.
type ChunksResponse struct {
	ProjectID string        `json:"project_id"`
	Total     int           `json:"total"`
	Chunks    []ChunkResult `json:"chunks"`
}

// ChunksCmd creates the chunks command.
func ChunksCmd() *cobra.Command {
	var (
		projectID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Preview indexed chunks",
		Long:  "Lists a bounded preview of a project's indexed chunks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChunks(cmd, projectID, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum chunks to list")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runChunks(cmd *cobra.Command, projectID string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/chunks", projectID)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("listing chunks failed: %w", err)
	}

	var chunksResp ChunksResponse
	if err := json.Unmarshal(resp.Data, &chunksResp); err != nil {
		return fmt.Errorf("failed to parse chunks response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(chunksResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Project %s: %d chunks indexed, showing %d:\n\n",
		chunksResp.ProjectID, chunksResp.Total, len(chunksResp.Chunks))
	for i, chunk := range chunksResp.Chunks {
		fmt.Printf("%s (%s, chunk %d)\n",
			chunk.ID, chunk.Metadata.SourceDocument, chunk.Metadata.ChunkIndex)
		text := chunk.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("   %s\n", text)
		if i < len(chunksResp.Chunks)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}

package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata is persisted alongside every stored chunk so generated output
// stays traceable back to its source evidence.
type ChunkMetadata struct {
	ProjectID      string    `json:"project_id"`
	SourceDocument string    `json:"source_document"`
	FileType       Format    `json:"file_type"`
	Fingerprint    string    `json:"file_hash"`
	ChunkIndex     int       `json:"chunk_index"`
	Page           *int      `json:"page,omitempty"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// ChunkID derives the stable identity of a chunk. It is a pure function of
// (project, document name, document content, position), never of wall-clock
// time or randomness, so re-ingesting byte-identical content upserts in place.
// The format is part of the compatibility surface.
func ChunkID(projectID, documentName, fingerprint string, index int) string {
	return fmt.Sprintf("%s::%s::%s::chunk_%d", projectID, documentName, fingerprint, index)
}

// Evidence is one retrieved chunk with its distance to the query vector.
// Lower distance means nearer.
type Evidence struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float64       `json:"distance"`
}

// StoredChunk is a bounded diagnostic preview of an indexed record.
type StoredChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

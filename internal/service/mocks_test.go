package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

const testDims = 3

// fakeEmbedder produces deterministic vectors derived from the text so tests
// can reason about distances without a live API.
type fakeEmbedder struct {
	failOn   string
	queryVec []float32
	batches  [][]string
	queries  []string
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	for _, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("embedding backend unavailable")
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return vectorFor(text), nil
}

func vectorFor(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	v := make([]float32, testDims)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000 + 0.001
	}
	return v
}

// fakeGenerator returns a canned completion and records the prompts it saw.
type fakeGenerator struct {
	output  string
	err     error
	systems []string
	users   []string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// fakeRetriever serves a fixed evidence set.
type fakeRetriever struct {
	evidence []domain.Evidence
	err      error
	queries  []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, projectID, query string, k int) ([]domain.Evidence, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.evidence, nil
}

// fakeArchiver records enqueued uploads.
type fakeArchiver struct {
	enqueued []string
}

func (f *fakeArchiver) EnqueueUpload(projectID, documentName, path string) {
	f.enqueued = append(f.enqueued, projectID+"/"+documentName)
}

func evidenceFixture(projectID string) []domain.Evidence {
	fingerprint := "abcdefabcdef"
	return []domain.Evidence{
		{
			ChunkID: domain.ChunkID(projectID, "manual.txt", fingerprint, 0),
			Text:    "Discount codes are entered on the checkout page and expire after 30 days.",
			Metadata: domain.ChunkMetadata{
				ProjectID:      projectID,
				SourceDocument: "manual.txt",
				FileType:       domain.FormatText,
				Fingerprint:    fingerprint,
				ChunkIndex:     0,
			},
			Distance: 0.1,
		},
		{
			ChunkID: domain.ChunkID(projectID, "manual.txt", fingerprint, 1),
			Text:    "An expired discount code shows the error message \"code expired\".",
			Metadata: domain.ChunkMetadata{
				ProjectID:      projectID,
				SourceDocument: "manual.txt",
				FileType:       domain.FormatText,
				Fingerprint:    fingerprint,
				ChunkIndex:     1,
			},
			Distance: 0.3,
		},
	}
}

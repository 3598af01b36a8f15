package service

import (
	"context"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/telemetry"
	"github.com/cloo-solutions/caseforge/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific count.
const DefaultTopK = 5

// RetrieveService answers nearest-neighbor queries against one project's
// index.
type RetrieveService struct {
	projects ProjectStoreInterface
	backend  vectorstore.Backend
	embedder Embedder
}

// NewRetrieveService creates a new RetrieveService instance
func NewRetrieveService(
	projects ProjectStoreInterface,
	backend vectorstore.Backend,
	embedder Embedder,
) *RetrieveService {
	return &RetrieveService{
		projects: projects,
		backend:  backend,
		embedder: embedder,
	}
}

// Retrieve embeds the query and returns up to k nearest chunks from the
// project's index, nearest first. An index holding fewer than k chunks
// returns what it has.
func (s *RetrieveService) Retrieve(ctx context.Context, projectID, query string, k int) ([]domain.Evidence, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrieveService.Retrieve", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "retrieve",
	})
	defer span.End()

	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	project, err := s.projects.Resolve(projectID)
	if err != nil {
		return nil, err
	}

	index, err := s.backend.Open(ctx, project)
	if err != nil {
		return nil, domain.NewIndexError(err)
	}
	defer index.Close()

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewEmbeddingError("query", err)
	}

	results, err := index.Query(ctx, vector, k)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewIndexError(err)
	}
	return results, nil
}

// ListChunks returns a bounded diagnostic preview of a project's stored
// chunks in insertion order.
func (s *RetrieveService) ListChunks(ctx context.Context, projectID string, limit int) ([]domain.StoredChunk, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrieveService.ListChunks", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "list_chunks",
	})
	defer span.End()

	project, err := s.projects.Resolve(projectID)
	if err != nil {
		return nil, 0, err
	}

	index, err := s.backend.Open(ctx, project)
	if err != nil {
		return nil, 0, domain.NewIndexError(err)
	}
	defer index.Close()

	chunks, err := index.List(ctx, limit)
	if err != nil {
		return nil, 0, domain.NewIndexError(err)
	}
	total, err := index.Count(ctx)
	if err != nil {
		return nil, 0, domain.NewIndexError(err)
	}
	return chunks, total, nil
}

// Package vectorstore provides per-project vector indexes. Every project gets
// a physically separate index; cross-project reads are impossible by
// construction rather than filtered by predicate.
package vectorstore

import (
	"context"
	"errors"
	"math"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimensionality
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
	// ErrClosed is returned when operating on a closed index
	ErrClosed = errors.New("index is closed")
)

// Index is a single project's vector index. Implementations must be safe for
// concurrent use.
type Index interface {
	// Upsert stores chunks with their vectors. Re-upserting an existing
	// chunk id replaces its text, metadata and vector in place.
	Upsert(ctx context.Context, chunks []domain.StoredChunk, vectors [][]float32) error
	// Query returns up to k nearest chunks by cosine distance, ascending.
	Query(ctx context.Context, vector []float32, k int) ([]domain.Evidence, error)
	// List returns up to limit stored chunks in insertion order, for
	// diagnostics.
	List(ctx context.Context, limit int) ([]domain.StoredChunk, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Backend opens per-project indexes. The backend is chosen once at startup.
type Backend interface {
	Open(ctx context.Context, project *domain.Project) (Index, error)
}

// cosineDistance returns 1 - cosine similarity. Degenerate zero vectors are
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/project"
	"github.com/cloo-solutions/caseforge/internal/vectorstore"
)

// seedIndex plants chunks with explicit vectors so distance ordering is
// under test control.
func seedIndex(t *testing.T, backend vectorstore.Backend, p *domain.Project, ids []string, vectors [][]float32) {
	t.Helper()
	index, err := backend.Open(context.Background(), p)
	require.NoError(t, err)
	defer index.Close()

	chunks := make([]domain.StoredChunk, len(ids))
	for i, id := range ids {
		chunks[i] = domain.StoredChunk{
			ID:   id,
			Text: "text for " + id,
			Metadata: domain.ChunkMetadata{
				ProjectID:      p.ID,
				SourceDocument: "manual.txt",
				FileType:       domain.FormatText,
				Fingerprint:    "abcdefabcdef",
				ChunkIndex:     i,
			},
		}
	}
	require.NoError(t, index.Upsert(context.Background(), chunks, vectors))
}

func newRetrieveFixture(t *testing.T, embedder *fakeEmbedder) (*RetrieveService, *project.Store, vectorstore.Backend) {
	t.Helper()
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)
	backend := vectorstore.NewSQLiteBackend(testDims)
	return NewRetrieveService(store, backend, embedder), store, backend
}

func TestRetrieve_OrdersByDistanceAscending(t *testing.T) {
	embedder := &fakeEmbedder{queryVec: []float32{1, 0, 0}}
	svc, store, backend := newRetrieveFixture(t, embedder)

	p, err := store.Create()
	require.NoError(t, err)
	seedIndex(t, backend, p,
		[]string{"far", "near", "mid"},
		[][]float32{{-1, 0.2, 0}, {1, 0.05, 0}, {0.5, 0.5, 0}})

	results, err := svc.Retrieve(context.Background(), p.ID, "how do discounts work", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "near", results[0].ChunkID)
	assert.Equal(t, "mid", results[1].ChunkID)
	assert.Equal(t, "far", results[2].ChunkID)
	assert.True(t, results[0].Distance <= results[1].Distance)
	assert.True(t, results[1].Distance <= results[2].Distance)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc, store, _ := newRetrieveFixture(t, &fakeEmbedder{})
	p, err := store.Create()
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), p.ID, "", 5)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestRetrieve_UnknownProject(t *testing.T) {
	svc, _, _ := newRetrieveFixture(t, &fakeEmbedder{})

	_, err := svc.Retrieve(context.Background(), "proj_404_nosuch", "query", 5)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestRetrieve_FewerChunksThanK(t *testing.T) {
	embedder := &fakeEmbedder{queryVec: []float32{1, 0, 0}}
	svc, store, backend := newRetrieveFixture(t, embedder)

	p, err := store.Create()
	require.NoError(t, err)
	seedIndex(t, backend, p, []string{"only"}, [][]float32{{1, 0, 0}})

	results, err := svc.Retrieve(context.Background(), p.ID, "query", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieve_DefaultsK(t *testing.T) {
	embedder := &fakeEmbedder{queryVec: []float32{1, 0, 0}}
	svc, store, backend := newRetrieveFixture(t, embedder)

	p, err := store.Create()
	require.NoError(t, err)

	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors := make([][]float32, len(ids))
	for i := range vectors {
		vectors[i] = []float32{1, float32(i) * 0.1, 0}
	}
	seedIndex(t, backend, p, ids, vectors)

	results, err := svc.Retrieve(context.Background(), p.ID, "query", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	svc, store, _ := newRetrieveFixture(t, &fakeEmbedder{queryVec: []float32{1, 0, 0}})

	p, err := store.Create()
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), p.ID, "query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListChunks_Preview(t *testing.T) {
	svc, store, backend := newRetrieveFixture(t, &fakeEmbedder{})

	p, err := store.Create()
	require.NoError(t, err)
	seedIndex(t, backend, p,
		[]string{"first", "second", "third"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})

	chunks, total, err := svc.ListChunks(context.Background(), p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].ID)
	assert.Equal(t, "second", chunks[1].ID)
}

func TestListChunks_UnknownProject(t *testing.T) {
	svc, _, _ := newRetrieveFixture(t, &fakeEmbedder{})

	_, _, err := svc.ListChunks(context.Background(), "proj_404_nosuch", 10)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

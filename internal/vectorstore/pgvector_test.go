package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/testutil"
)

func pgProject(id string) *domain.Project {
	return &domain.Project{ID: id, CreatedAt: time.Now().UTC()}
}

func TestPGVectorBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	backend := NewPGVectorBackend(pool, 3)

	t.Run("upsert and ordered query", func(t *testing.T) {
		require.NoError(t, testutil.ResetDatabase(ctx, pool))

		idx, err := backend.Open(ctx, pgProject("proj_100_aaaaaa"))
		require.NoError(t, err)

		err = idx.Upsert(ctx, []domain.StoredChunk{
			chunk("far", "far"), chunk("near", "near"), chunk("mid", "mid"),
		}, [][]float32{
			{-1, 0.2, 0},
			{1, 0.05, 0},
			{0.5, 0.5, 0},
		})
		require.NoError(t, err)

		results, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "near", results[0].ChunkID)
		assert.Equal(t, "mid", results[1].ChunkID)
		assert.Equal(t, "far", results[2].ChunkID)
	})

	t.Run("re-upsert replaces in place", func(t *testing.T) {
		require.NoError(t, testutil.ResetDatabase(ctx, pool))

		idx, err := backend.Open(ctx, pgProject("proj_101_bbbbbb"))
		require.NoError(t, err)

		require.NoError(t, idx.Upsert(ctx, []domain.StoredChunk{chunk("id-1", "old")},
			[][]float32{{1, 0, 0}}))
		require.NoError(t, idx.Upsert(ctx, []domain.StoredChunk{chunk("id-1", "new")},
			[][]float32{{0, 1, 0}}))

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		results, err := idx.Query(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new", results[0].Text)
	})

	t.Run("projects are physically isolated", func(t *testing.T) {
		require.NoError(t, testutil.ResetDatabase(ctx, pool))

		idxA, err := backend.Open(ctx, pgProject("proj_102_cccccc"))
		require.NoError(t, err)
		idxB, err := backend.Open(ctx, pgProject("proj_103_dddddd"))
		require.NoError(t, err)

		require.NoError(t, idxA.Upsert(ctx, []domain.StoredChunk{chunk("only-in-a", "secret")},
			[][]float32{{1, 0, 0}}))

		results, err := idxB.Query(ctx, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("rejects hostile project id", func(t *testing.T) {
		_, err := backend.Open(ctx, pgProject("proj_1; DROP TABLE projects"))
		assert.Error(t, err)
	})
}

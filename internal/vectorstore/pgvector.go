package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

// safeProjectID guards table name interpolation. Project ids are generated
// from this alphabet; anything else is rejected before touching SQL.
var safeProjectID = regexp.MustCompile(`^[a-z0-9_]+$`)

// PGVectorBackend keeps one physical table per project in a shared Postgres
// database with the pgvector extension. Isolation is structural: queries name
// the project's table, never a shared table with a project filter.
type PGVectorBackend struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPGVectorBackend(pool *pgxpool.Pool, dimensions int) *PGVectorBackend {
	return &PGVectorBackend{pool: pool, dimensions: dimensions}
}

func (b *PGVectorBackend) Open(ctx context.Context, project *domain.Project) (Index, error) {
	if err := domain.ValidateProject(project); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	if !safeProjectID.MatchString(project.ID) {
		return nil, fmt.Errorf("project id %q is not a valid table suffix", project.ID)
	}
	table := "chunks_" + project.ID

	_, err := b.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			text      TEXT NOT NULL,
			metadata  JSONB NOT NULL,
			embedding vector(%d) NOT NULL,
			ord       BIGSERIAL
		)`, table, b.dimensions))
	if err != nil {
		return nil, fmt.Errorf("failed to create project table: %w", err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO projects (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		project.ID, project.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to register project: %w", err)
	}

	return &pgIndex{pool: b.pool, table: table, dimensions: b.dimensions}, nil
}

type pgIndex struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
}

func (idx *pgIndex) Upsert(ctx context.Context, chunks []domain.StoredChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != idx.dimensions {
			return ErrDimensionMismatch
		}
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, text, metadata, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, idx.table)

	for i, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", chunk.ID, err)
		}
		if _, err := tx.Exec(ctx, sql, chunk.ID, chunk.Text, metadata, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

func (idx *pgIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.Evidence, error) {
	if len(vector) != idx.dimensions {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return []domain.Evidence{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT id, text, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`, idx.table)

	rows, err := idx.pool.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Evidence, 0, k)
	for rows.Next() {
		var (
			ev           domain.Evidence
			metadataJSON []byte
		)
		if err := rows.Scan(&ev.ChunkID, &ev.Text, &metadataJSON, &ev.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", ev.ChunkID, err)
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}

	// Approximate index scans can return out of order at the margin.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}

func (idx *pgIndex) List(ctx context.Context, limit int) ([]domain.StoredChunk, error) {
	sql := fmt.Sprintf(`SELECT id, text, metadata FROM %s ORDER BY ord`, idx.table)
	args := []any{}
	if limit > 0 {
		sql += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := idx.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.StoredChunk, 0)
	for rows.Next() {
		var chunk domain.StoredChunk
		var metadataJSON []byte
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (idx *pgIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := idx.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, idx.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close is a no-op; the pool is shared across projects and owned by the
// backend's caller.
func (idx *pgIndex) Close() error {
	return nil
}

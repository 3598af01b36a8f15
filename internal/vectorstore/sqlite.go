package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL
);
`

// SQLiteBackend stores each project's index as a single SQLite database file
// inside the project's index directory. Similarity search scans the project's
// vectors in process; project corpora are small enough that a linear scan
// beats the operational cost of a vector database.
type SQLiteBackend struct {
	dimensions int
}

func NewSQLiteBackend(dimensions int) *SQLiteBackend {
	return &SQLiteBackend{dimensions: dimensions}
}

func (b *SQLiteBackend) Open(ctx context.Context, project *domain.Project) (Index, error) {
	if err := domain.ValidateProject(project); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}

	path := filepath.Join(project.IndexDir, "chunks.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	// modernc sqlite serializes writes through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	return &sqliteIndex{db: db, dimensions: b.dimensions}, nil
}

type sqliteIndex struct {
	mu         sync.Mutex
	db         *sql.DB
	dimensions int
	closed     bool
}

func (idx *sqliteIndex) Upsert(ctx context.Context, chunks []domain.StoredChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != idx.dimensions {
			return ErrDimensionMismatch
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, metadata, embedding) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", chunk.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Text, string(metadata), encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

func (idx *sqliteIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.Evidence, error) {
	if len(vector) != idx.dimensions {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return []domain.Evidence{}, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, ErrClosed
	}

	// Scan in insertion order so the stable sort breaks distance ties by it.
	rows, err := idx.db.QueryContext(ctx, `SELECT id, text, metadata, embedding FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Evidence, 0, k)
	for rows.Next() {
		var (
			id, text, metadataJSON string
			blob                   []byte
		)
		if err := rows.Scan(&id, &text, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for chunk %s: %w", id, err)
		}
		if len(stored) != idx.dimensions {
			continue
		}

		var metadata domain.ChunkMetadata
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", id, err)
		}

		results = append(results, domain.Evidence{
			ChunkID:  id,
			Text:     text,
			Metadata: metadata,
			Distance: cosineDistance(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (idx *sqliteIndex) List(ctx context.Context, limit int) ([]domain.StoredChunk, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, ErrClosed
	}

	rows, err := idx.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM chunks ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.StoredChunk, 0)
	for rows.Next() {
		var chunk domain.StoredChunk
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (idx *sqliteIndex) Count(ctx context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0, ErrClosed
	}

	var count int
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (idx *sqliteIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.db.Close()
}

// encodeVector packs float32 values little-endian for blob storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

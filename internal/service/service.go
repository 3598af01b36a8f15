// Package service implements the knowledge base pipeline: ingestion,
// retrieval, and evidence-grounded generation.
package service

import (
	"context"
	"sync"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

// Embedder defines the embedding interface consumed by the pipeline
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator defines the structured generation interface consumed by the
// grounded generators
type Generator interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}

// ProjectStoreInterface defines the project directory store interface
type ProjectStoreInterface interface {
	Create() (*domain.Project, error)
	Resolve(id string) (*domain.Project, error)
}

// Archiver accepts uploaded documents for asynchronous archival. Enqueue must
// never block the ingestion path.
type Archiver interface {
	EnqueueUpload(projectID, documentName, path string)
}

// keyedMutex serializes writers per project while leaving unrelated projects
// unblocked.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

package jobs

import (
	"context"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
)

// ObjectStore defines the storage interface for archived uploads
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type archiveItem struct {
	ProjectID string
	Document  string
	Path      string
}

// defaultQueueSize bounds pending archival items. Archival is best-effort;
// overflow drops the item rather than blocking ingestion.
const defaultQueueSize = 256

// ArchiveProcessor copies uploaded documents into object storage. Enqueue is
// non-blocking; pending items are drained by the worker's poll cycle.
type ArchiveProcessor struct {
	store ObjectStore
	queue chan archiveItem
}

// NewArchiveProcessor creates a new ArchiveProcessor instance
func NewArchiveProcessor(store ObjectStore) *ArchiveProcessor {
	return &ArchiveProcessor{
		store: store,
		queue: make(chan archiveItem, defaultQueueSize),
	}
}

// EnqueueUpload queues one stored upload for archival. Never blocks.
func (p *ArchiveProcessor) EnqueueUpload(projectID, documentName, filePath string) {
	item := archiveItem{ProjectID: projectID, Document: documentName, Path: filePath}
	select {
	case p.queue <- item:
	default:
		log.Printf("archive queue full, dropping %s/%s", projectID, documentName)
	}
}

// ProcessJobs drains the pending queue, uploading each item to object
// storage under <project_id>/uploads/<document>.
func (p *ArchiveProcessor) ProcessJobs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-p.queue:
			if err := p.archive(ctx, item); err != nil {
				log.Printf("failed to archive %s/%s: %v", item.ProjectID, item.Document, err)
			}
		default:
			return nil
		}
	}
}

func (p *ArchiveProcessor) archive(ctx context.Context, item archiveItem) error {
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return err
	}

	key := path.Join(item.ProjectID, "uploads", filepath.Base(item.Document))
	contentType := mime.TypeByExtension(filepath.Ext(item.Document))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return p.store.PutObject(ctx, key, data, contentType)
}

// Pending returns the number of queued items, for tests and diagnostics.
func (p *ArchiveProcessor) Pending() int {
	return len(p.queue)
}

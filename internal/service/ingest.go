package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/extract"
	"github.com/cloo-solutions/caseforge/internal/telemetry"
	"github.com/cloo-solutions/caseforge/internal/textsplit"
	"github.com/cloo-solutions/caseforge/internal/vectorstore"
)

// IngestService builds per-project knowledge bases from uploaded documents.
type IngestService struct {
	projects ProjectStoreInterface
	backend  vectorstore.Backend
	embedder Embedder
	archiver Archiver
	splitCfg textsplit.Config
	locks    *keyedMutex
	now      func() time.Time
}

// NewIngestService creates a new IngestService instance. archiver may be nil
// when upload archival is disabled.
func NewIngestService(
	projects ProjectStoreInterface,
	backend vectorstore.Backend,
	embedder Embedder,
	archiver Archiver,
	splitCfg textsplit.Config,
) *IngestService {
	if splitCfg.Size <= 0 {
		splitCfg = textsplit.DefaultConfig()
	}
	return &IngestService{
		projects: projects,
		backend:  backend,
		embedder: embedder,
		archiver: archiver,
		splitCfg: splitCfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// DocumentResult reports the ingestion outcome for one document.
type DocumentResult struct {
	Document string `json:"document"`
	Format   string `json:"format"`
	Chunks   int    `json:"chunks"`
}

// BuildResult reports the outcome of a knowledge base build.
type BuildResult struct {
	Project   *domain.Project
	Documents []DocumentResult
	Chunks    int
}

// Build creates a fresh project and ingests all documents into it. Each call
// allocates an independent project; nothing is shared with earlier builds.
func (s *IngestService) Build(ctx context.Context, docs []domain.Document) (*BuildResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Build", telemetry.SpanAttributes{
		Operation: "build",
	})
	defer span.End()

	project, err := s.projects.Create()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create project", err)
	}

	result, err := s.ingest(ctx, project, docs)
	if err != nil {
		// The project and any documents committed before the failure
		// remain; the caller may retry the remainder safely.
		return result, err
	}
	return result, nil
}

// Ingest adds documents to an existing project. Re-ingesting a byte-identical
// document upserts the same chunk ids in place.
func (s *IngestService) Ingest(ctx context.Context, projectID string, docs []domain.Document) (*BuildResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "ingest",
	})
	defer span.End()

	project, err := s.projects.Resolve(projectID)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, project, docs)
}

func (s *IngestService) ingest(ctx context.Context, project *domain.Project, docs []domain.Document) (*BuildResult, error) {
	unlock := s.locks.Lock(project.ID)
	defer unlock()

	index, err := s.backend.Open(ctx, project)
	if err != nil {
		return nil, domain.NewIndexError(err)
	}
	defer index.Close()

	result := &BuildResult{Project: project}
	for _, doc := range docs {
		docResult, err := s.ingestDocument(ctx, project, index, doc)
		if err != nil {
			// Abort the run; documents already committed stay indexed.
			return result, err
		}
		result.Documents = append(result.Documents, docResult)
		result.Chunks += docResult.Chunks
	}
	return result, nil
}

func (s *IngestService) ingestDocument(ctx context.Context, project *domain.Project, index vectorstore.Index, doc domain.Document) (DocumentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.ingestDocument", telemetry.SpanAttributes{
		ProjectID: project.ID,
		Document:  doc.Name,
		Operation: "ingest_document",
	})
	defer span.End()

	docResult := DocumentResult{Document: doc.Name, Format: string(doc.Format)}

	if err := s.storeUpload(project, doc); err != nil {
		return docResult, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError,
			fmt.Sprintf("failed to store upload %q", doc.Name), err)
	}

	text := extract.Text(doc)
	segments := textsplit.Split(text, s.splitCfg.Size, s.splitCfg.Overlap)
	if len(segments) == 0 {
		// A document that extracts to nothing contributes no chunks but
		// does not fail the build.
		return docResult, nil
	}

	fingerprint := doc.Fingerprint()
	ingestedAt := s.now().UTC()
	chunks := make([]domain.StoredChunk, len(segments))
	for i, segment := range segments {
		chunks[i] = domain.StoredChunk{
			ID:   domain.ChunkID(project.ID, doc.Name, fingerprint, i),
			Text: segment,
			Metadata: domain.ChunkMetadata{
				ProjectID:      project.ID,
				SourceDocument: doc.Name,
				FileType:       doc.Format,
				Fingerprint:    fingerprint,
				ChunkIndex:     i,
				IngestedAt:     ingestedAt,
			},
		}
	}

	texts := make([]string, len(segments))
	copy(texts, segments)
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		span.SetError(err)
		return docResult, domain.NewEmbeddingError(doc.Name, err)
	}

	if err := index.Upsert(ctx, chunks, vectors); err != nil {
		span.SetError(err)
		return docResult, domain.NewIndexError(err)
	}

	docResult.Chunks = len(chunks)
	return docResult, nil
}

// storeUpload writes the raw document into the project's uploads area and
// hands it to the archiver. HTML uploads also become the project's reference
// artifact under its canonical name.
func (s *IngestService) storeUpload(project *domain.Project, doc domain.Document) error {
	path := filepath.Join(project.UploadsDir, filepath.Base(doc.Name))
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return err
	}

	if doc.Format == domain.FormatHTML && filepath.Base(doc.Name) != domain.ReferenceArtifactName {
		canonical := filepath.Join(project.UploadsDir, domain.ReferenceArtifactName)
		if _, err := os.Stat(canonical); os.IsNotExist(err) {
			if err := os.WriteFile(canonical, doc.Data, 0o644); err != nil {
				return err
			}
		}
	}

	if s.archiver != nil {
		s.archiver.EnqueueUpload(project.ID, doc.Name, path)
	}
	return nil
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/caseforge/internal/api"
	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/service"
)

const (
	// multipartMemoryLimit bounds the in-memory portion of multipart parsing;
	// larger uploads spill to temp files.
	multipartMemoryLimit = 32 << 20

	defaultChunkPreviewLimit = 20
	maxChunkPreviewLimit     = 100
)

type IngestService interface {
	Build(ctx context.Context, docs []domain.Document) (*service.BuildResult, error)
	Ingest(ctx context.Context, projectID string, docs []domain.Document) (*service.BuildResult, error)
}

type ChunkLister interface {
	ListChunks(ctx context.Context, projectID string, limit int) ([]domain.StoredChunk, int, error)
}

type ProjectHandler struct {
	ingest       IngestService
	chunks       ChunkLister
	buildTimeout time.Duration
}

func NewProjectHandler(ingest IngestService, chunks ChunkLister, buildTimeout time.Duration) *ProjectHandler {
	if buildTimeout <= 0 {
		buildTimeout = 3 * time.Minute
	}
	return &ProjectHandler{ingest: ingest, chunks: chunks, buildTimeout: buildTimeout}
}

type BuildResponse struct {
	ProjectID string                   `json:"project_id"`
	Documents []service.DocumentResult `json:"documents"`
	Chunks    int                      `json:"chunks"`
}

// Build accepts a multipart upload and builds a fresh project knowledge base
// from it. Each call creates an independent project.
func (h *ProjectHandler) Build(w http.ResponseWriter, r *http.Request) {
	docs, ok := h.readUploads(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.buildTimeout)
	defer cancel()

	result, err := h.ingest.Build(ctx, docs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, BuildResponse{
		ProjectID: result.Project.ID,
		Documents: result.Documents,
		Chunks:    result.Chunks,
	})
}

// Ingest adds documents to an existing project.
func (h *ProjectHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	docs, ok := h.readUploads(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.buildTimeout)
	defer cancel()

	result, err := h.ingest.Ingest(ctx, projectID, docs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, BuildResponse{
		ProjectID: result.Project.ID,
		Documents: result.Documents,
		Chunks:    result.Chunks,
	})
}

func (h *ProjectHandler) readUploads(w http.ResponseWriter, r *http.Request) ([]domain.Document, bool) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return nil, false
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		api.Error(w, http.StatusBadRequest, "at least one file is required")
		return nil, false
	}

	docs := make([]domain.Document, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to open uploaded file")
			return nil, false
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
			return nil, false
		}

		name := filepath.Base(header.Filename)
		docs = append(docs, domain.Document{
			Name:   name,
			Format: domain.DetectFormat(name),
			Data:   data,
		})
	}
	return docs, true
}

type ChunkPreviewResponse struct {
	ProjectID string               `json:"project_id"`
	Total     int                  `json:"total"`
	Chunks    []domain.StoredChunk `json:"chunks"`
}

// Chunks returns a bounded preview of a project's indexed chunks.
func (h *ProjectHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	limit := defaultChunkPreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxChunkPreviewLimit {
		limit = maxChunkPreviewLimit
	}

	chunks, total, err := h.chunks.ListChunks(r.Context(), projectID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChunkPreviewResponse{
		ProjectID: projectID,
		Total:     total,
		Chunks:    chunks,
	})
}

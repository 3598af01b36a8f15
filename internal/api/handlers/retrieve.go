package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/caseforge/internal/api"
	"github.com/cloo-solutions/caseforge/internal/domain"
)

type RetrieveService interface {
	Retrieve(ctx context.Context, projectID, query string, k int) ([]domain.Evidence, error)
}

type RetrieveHandler struct {
	svc RetrieveService
}

func NewRetrieveHandler(svc RetrieveService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
}

type RetrieveResponse struct {
	ProjectID string            `json:"project_id"`
	Results   []domain.Evidence `json:"results"`
	Count     int               `json:"count"`
}

// Retrieve returns the nearest chunks for a query, nearest first.
func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProjectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), req.ProjectID, req.Query, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		ProjectID: req.ProjectID,
		Results:   results,
		Count:     len(results),
	})
}

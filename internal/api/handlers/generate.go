package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/caseforge/internal/api"
	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/service"
)

type TestCaseService interface {
	Generate(ctx context.Context, projectID, query string) (*service.TestCaseSet, error)
}

type ScriptService interface {
	Generate(ctx context.Context, projectID, query string) (*domain.GeneratedScript, error)
}

type GenerateHandler struct {
	testcases       TestCaseService
	scripts         ScriptService
	generateTimeout time.Duration
}

func NewGenerateHandler(testcases TestCaseService, scripts ScriptService, generateTimeout time.Duration) *GenerateHandler {
	if generateTimeout <= 0 {
		generateTimeout = 5 * time.Minute
	}
	return &GenerateHandler{
		testcases:       testcases,
		scripts:         scripts,
		generateTimeout: generateTimeout,
	}
}

type GenerateRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
}

func (h *GenerateHandler) decode(w http.ResponseWriter, r *http.Request) (GenerateRequest, bool) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.ProjectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return req, false
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	return req, true
}

// TestCases generates evidence-grounded test cases for the request.
func (h *GenerateHandler) TestCases(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.generateTimeout)
	defer cancel()

	result, err := h.testcases.Generate(ctx, req.ProjectID, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

type ScriptRequest struct {
	ProjectID string           `json:"project_id"`
	Query     string           `json:"query"`
	TestCase  *domain.TestCase `json:"testcase"`
}

// scriptQuery flattens a structured test case into the retrieval query text.
func scriptQuery(req ScriptRequest) string {
	if req.Query != "" || req.TestCase == nil {
		return req.Query
	}
	parts := []string{req.TestCase.Scenario}
	parts = append(parts, req.TestCase.Steps...)
	if req.TestCase.Expected != "" {
		parts = append(parts, req.TestCase.Expected)
	}
	return strings.Join(parts, "\n")
}

// Script generates a browser automation script for the request. The request
// carries either a free-text query or a structured test case; a test case is
// flattened into its own text for retrieval.
func (h *GenerateHandler) Script(w http.ResponseWriter, r *http.Request) {
	var req ScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID == "" {
		api.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}
	query := scriptQuery(req)
	if query == "" {
		api.Error(w, http.StatusBadRequest, "query or testcase is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.generateTimeout)
	defer cancel()

	result, err := h.scripts.Generate(ctx, req.ProjectID, query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/caseforge/internal/api"
	"github.com/cloo-solutions/caseforge/internal/api/handlers"
	"github.com/cloo-solutions/caseforge/internal/api/middleware"
)

type RouterConfig struct {
	ProjectHandler  *handlers.ProjectHandler
	RetrieveHandler *handlers.RetrieveHandler
	GenerateHandler *handlers.GenerateHandler
	MaxBodyBytes    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		// Uploads carry whole documents, so the limit is generous.
		maxBodyBytes = 50 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/build", cfg.ProjectHandler.Build)
		r.Post("/{id}/documents", cfg.ProjectHandler.Ingest)
		r.Get("/{id}/chunks", cfg.ProjectHandler.Chunks)
	})

	r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
	r.Post("/testcases/generate", cfg.GenerateHandler.TestCases)
	r.Post("/scripts/generate", cfg.GenerateHandler.Script)

	return r
}

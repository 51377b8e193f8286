package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit.Enabled {
			r.Use(s.limitRequests(s.cfg.RateLimit.RequestsPerMinute))
		}

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Get("/{id}", s.handleGetProject)
			r.Patch("/{id}", s.handleUpdateProject)
			r.Delete("/{id}", s.handleDeleteProject)
		})

		r.Route("/tests", func(r chi.Router) {
			r.Get("/", s.handleListTests)
			r.Post("/", s.handleCreateTest)
			r.Get("/{id}", s.handleGetTest)
			r.Delete("/{id}", s.handleDeleteTest)
			r.Post("/{id}/run-analysis", s.handleRunAnalysis)
		})

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/test/{testID}", s.handleListArtifacts)
			r.Post("/test/{testID}/upload", s.handleUploadArtifact)
			r.Delete("/test/{testID}/artifacts", s.handleDeleteArtifacts)
			r.Get("/download-all/{testID}", s.handleDownloadArtifacts)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/test/{testID}", s.handleGetReport)
			r.Get("/test/{testID}/text", s.handleGetReportText)
			r.Get("/test/{testID}/pdf", s.handleGetReportPDF)
		})

		r.Route("/collect", func(r chi.Router) {
			r.Post("/test/{testID}/grafana", s.handleCollectGrafana)
			r.Post("/test/{testID}/kubernetes", s.handleCollectKubernetes)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}

	origins := s.cfg.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/content", func(r chi.Router) {
			r.Post("/generate", h.GenerateContent)
			r.Post("/regenerate", h.RegenerateContent)
			r.Post("/", h.SaveContent)
			r.Get("/", h.ListContent)
			r.Get("/{id}", h.GetContent)
			r.Delete("/{id}", h.DeleteContent)
			r.Post("/{id}/trash", h.TrashContent)
		})

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", h.ListTrash)
			r.Delete("/", h.EmptyTrash)
			r.Post("/{id}/restore", h.RestoreContent)
			r.Delete("/{id}", h.DeleteFromTrash)
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.CreateBackup)
			r.Post("/restore", h.RestoreBackup)
			r.Get("/{name}/download", h.DownloadBackup)
		})
	})

	return r
}

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging)

	router.Route("/api/sync", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/failed", h.listFailed)
		r.Post("/trigger", h.triggerSync)
		r.Post("/retry-failed", h.retryFailed)
	})

	router.Method("GET", "/metrics", h.metrics)

	return router
}

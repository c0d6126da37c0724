package server

import (
	"net/http"

	"github.com/cloo-solutions/remind/internal/api/handlers"
	"github.com/cloo-solutions/remind/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	APIToken          string
	QueryHandler      *handlers.QueryHandler
	DocumentHandler   *handlers.DocumentHandler
	DeadLetterHandler *handlers.DeadLetterHandler
	HealthHandler     *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.APIToken))

		r.Post("/query", cfg.QueryHandler.Query)
		r.Post("/summary", cfg.QueryHandler.Summary)
		r.Post("/documents", cfg.DocumentHandler.Add)
		r.Get("/deadletters", cfg.DeadLetterHandler.List)
	})

	return r
}

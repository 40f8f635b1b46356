package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/josh-kwaku/banking-service/api"
	"github.com/josh-kwaku/banking-service/internal/handler"
	"github.com/josh-kwaku/banking-service/internal/middleware"
)

func newRouter(logger *slog.Logger, allowedOrigins []string, bankingH *handler.BankingHandler, healthH *handler.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)
	r.Get("/docs", handler.ServeDocs("/docs/openapi.yaml"))
	r.Get("/docs/openapi.yaml", handler.ServeSpec(api.OpenAPI))

	r.Route("/api/banking", func(r chi.Router) {
		r.Use(middleware.RequireCredential)
		r.Post("/deposit", bankingH.Deposit)
		r.Post("/withdraw", bankingH.Withdraw)
		r.Get("/balance", bankingH.Balance)
		r.Get("/transactions", bankingH.History)
	})

	return r
}

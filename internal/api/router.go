package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HealthHandler)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.OpenAccountHandler)

		r.Route("/{accountId}", func(r chi.Router) {
			r.Get("/", h.GetAccountHandler)
			r.Get("/ledger", h.LedgerHandler)
			r.Post("/deposit", h.DepositHandler)
			r.Post("/withdraw", h.WithdrawHandler)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

/*
server.go - HTTP router and middleware configuration.

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.

MIDDLEWARE STACK:
  1. Logger:           request logging
  2. Recoverer:        panic recovery (500 instead of crash)
  3. RequestID:        unique id per request for tracing
  4. echoRequestID:     copies the chi request id onto the response as
                        X-Request-Id, so a caller can hand it back when
                        reporting an error and have it line up with the
                        request_id field on the matching boundary log line
  5. CORS:             cross-origin requests

ROUTES (mounted under cfg.APIV1Prefix):
  POST /transactions/topup    top up a user wallet from TREASURY
  POST /transactions/bonus    credit a user wallet from MARKETING
  POST /transactions/spend    debit a user wallet into REVENUE
  GET  /wallets/{user_id}/balance?asset_type_id=...

  GET  /health                outside the versioned prefix

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, apiPrefix string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", h.Health)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/topup", h.TopUp)
			r.Post("/bonus", h.Bonus)
			r.Post("/spend", h.Spend)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/{user_id}/balance", h.GetBalance)
		})
	})

	return r
}

// echoRequestID copies the id middleware.RequestID stashed in the
// request context onto the response as X-Request-Id, so a caller can
// correlate a failed call with the request_id field on the matching
// boundary log line.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-Id", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

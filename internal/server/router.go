package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/devflow/internal/metrics"
	"github.com/sevigo/devflow/internal/server/handler"
)

const banner = "DevFlow AI code review service. POST GitHub webhooks to /api/v1/webhook/github.\n"

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(webhook *handler.WebhookHandler, reviews *handler.ReviewsHandler, requestTimeout time.Duration, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Webhook deliveries run a whole review inline and carry their own job
	// timeout, so they sit outside the request timeout.
	r.Post("/webhook/github", webhook.Handle) // legacy path used by hooks configured against the first release
	r.Post("/api/v1/webhook/github", webhook.Handle)

	r.Group(func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(banner))
		})
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		r.Get("/api/v1/reviews", reviews.ListRecent)
		r.Get("/api/v1/reviews/{owner}/{repo}/{number}", reviews.GetLatest)
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"gitea.jw6.us/james/boardcal/internal/config"
	"gitea.jw6.us/james/boardcal/internal/httpapi/ratelimit"
	"gitea.jw6.us/james/boardcal/internal/metrics"
	"gitea.jw6.us/james/boardcal/internal/store"
)

// NewRouter wires all HTTP routes for the lifecycle and webhook endpoints.
func NewRouter(cfg *config.Config, st *store.Store, events *EventsHandler, webhooks *WebhooksHandler) http.Handler {
	r := chi.NewRouter()

	// Lifecycle endpoints: 5 requests per second, burst of 10
	apiRateLimiter := ratelimit.New(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Webhook endpoints: 20 requests per second, burst of 50 (providers can deliver in bursts)
	webhookRateLimiter := ratelimit.New(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/events", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Post("/", events.Create)
		r.Get("/{cardID}", events.Get)
		r.Put("/{cardID}", events.Update)
		r.Delete("/{cardID}", events.Delete)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(webhookRateLimiter.Middleware())
		r.Head("/board", webhooks.VerifyBoard)
		r.Post("/board", webhooks.Board)
		r.Post("/calendar", webhooks.Calendar)
	})

	return r
}

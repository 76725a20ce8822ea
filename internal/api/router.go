package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	mw "github.com/membridge/membridge/internal/middleware"
	inats "github.com/membridge/membridge/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Ingestion and recall
	SubmitSnapshot http.HandlerFunc
	Recall         http.HandlerFunc

	// Admin
	Episodes      http.HandlerFunc
	DeleteGroup   http.HandlerFunc
	MemoryHealth  http.HandlerFunc
	PipelineStats http.HandlerFunc
	SetTrust      http.HandlerFunc
	GrantConsent  http.HandlerFunc
	RevokeConsent http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	IngestRateLimiter  func(http.Handler) http.Handler
}

func NewRouter(redisClient redis.UniversalClient, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe, checks Redis and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status": "healthy",
			"redis":  "healthy",
			"nats":   "healthy",
		}

		status := http.StatusOK

		if err := pingRedis(r.Context(), redisClient); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Group(func(r chi.Router) {
			if cfg.IngestRateLimiter != nil {
				r.Use(cfg.IngestRateLimiter)
			}
			r.Post("/snapshots", h.SubmitSnapshot)
		})

		r.Post("/recall", h.Recall)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", h.PipelineStats)
			r.Get("/memory/health", h.MemoryHealth)
			r.Get("/groups/{groupID}/episodes", h.Episodes)
			r.Delete("/groups/{groupID}", h.DeleteGroup)
			r.Post("/trust", h.SetTrust)
			r.Post("/consent/grant", h.GrantConsent)
			r.Post("/consent/revoke", h.RevokeConsent)
		})
	})

	return r
}

func pingRedis(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}

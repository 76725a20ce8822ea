package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/membridge/membridge/internal/admin"
	"github.com/membridge/membridge/internal/api"
	"github.com/membridge/membridge/internal/config"
	"github.com/membridge/membridge/internal/consent"
	"github.com/membridge/membridge/internal/gitmeta"
	"github.com/membridge/membridge/internal/graphmem"
	"github.com/membridge/membridge/internal/ingest"
	"github.com/membridge/membridge/internal/middleware"
	inats "github.com/membridge/membridge/internal/nats"
	"github.com/membridge/membridge/internal/pipeline"
	"github.com/membridge/membridge/internal/recall"
	"github.com/membridge/membridge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	redisClient, err := consent.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Consent and config resolution
	consentStore := consent.NewStore(redisClient)
	resolver := consent.NewResolver(cfg, consentStore)

	// Memory service client
	memClient := graphmem.NewClient(cfg.Memory.Endpoint, cfg.Memory.Timeout)

	// NATS (optional)
	var natsClient *inats.Client
	var delivered pipeline.DeliveredFunc
	if cfg.NATS.Enabled {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		publisher := inats.NewPublisher(natsClient.JetStream())
		delivered = publisher.DeliveredSink()
	}

	// Delivery scheduler
	scheduler := pipeline.NewScheduler(memClient, resolver, pipeline.SchedulerOptions{
		Ownership:      gitmeta.NewStatic(cfg.Pipeline, cfg.Git),
		OnDelivered:    delivered,
		DedupMaxGroups: cfg.Pipeline.DedupMaxGroups,
		DedupMaxTurns:  cfg.Pipeline.DedupMaxTurns,
	})

	// NATS snapshot intake
	if natsClient != nil {
		consumer := ingest.NewConsumer(natsClient.JetStream(), scheduler)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("snapshot consumer stopped", "error", err)
			}
		}()
	}

	// Handlers
	ingestHandler := ingest.NewHandler(scheduler)
	recallHandler := recall.NewHandler(recall.NewAggregator(memClient, resolver))
	adminHandler := admin.NewHandler(memClient, consentStore, scheduler)

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.API.RateLimitMaxReqs, cfg.API.RateLimitWindowSec)

	// Router
	router := api.NewRouter(redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.API.CORSAllowedOrigins,
		IngestRateLimiter:  rateLimiter.Middleware,
	}, api.HandlerSet{
		SubmitSnapshot: ingestHandler.Submit,
		Recall:         recallHandler.Search,

		Episodes:      adminHandler.Episodes,
		DeleteGroup:   adminHandler.DeleteGroup,
		MemoryHealth:  adminHandler.MemoryHealth,
		PipelineStats: adminHandler.Stats,
		SetTrust:      adminHandler.SetTrust,
		GrantConsent:  adminHandler.GrantConsent,
		RevokeConsent: adminHandler.RevokeConsent,

		AuthMiddleware: middleware.BearerAuth(cfg.API.Token),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	srv.OnShutdown = func() {
		cancel()
		scheduler.Dispose()
	}
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

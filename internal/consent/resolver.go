package consent

import (
	"context"
	"log/slog"

	"github.com/membridge/membridge/internal/config"
	"github.com/membridge/membridge/internal/pipeline"
)

// Resolver is the production pipeline.Resolver: static configuration
// gated by the Redis consent store. Every failure mode resolves to
// "not ok"; the pipeline never learns why, it just stays silent.
type Resolver struct {
	cfg   *config.Config
	store *Store
}

func NewResolver(cfg *config.Config, store *Store) *Resolver {
	return &Resolver{cfg: cfg, store: store}
}

func (r *Resolver) Resolve(ctx context.Context) (pipeline.ResolvedConfig, bool) {
	p := r.cfg.Pipeline
	endpoint := r.cfg.Memory.Endpoint
	if !p.Enabled || endpoint == "" || p.WorkspaceID == "" {
		return pipeline.ResolvedConfig{}, false
	}

	trusted, err := r.store.Trusted(ctx, p.WorkspaceID)
	if err != nil {
		slog.Warn("consent: trust lookup failed, failing closed", "workspace", p.WorkspaceID, "error", err)
		return pipeline.ResolvedConfig{}, false
	}
	if !trusted {
		return pipeline.ResolvedConfig{}, false
	}

	consented, err := r.store.EndpointConsented(ctx, p.WorkspaceID, endpoint)
	if err != nil {
		slog.Warn("consent: consent lookup failed, failing closed", "workspace", p.WorkspaceID, "error", err)
		return pipeline.ResolvedConfig{}, false
	}
	if !consented {
		return pipeline.ResolvedConfig{}, false
	}

	return pipeline.ResolvedConfig{PipelineConfig: p, Endpoint: endpoint}, true
}

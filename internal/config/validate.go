package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Memory service endpoint: optional (pipeline fails closed without it),
	// but if set it must be a valid http(s) URL.
	if c.Memory.Endpoint != "" {
		u, err := url.Parse(c.Memory.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "MEMORY_ENDPOINT must be a valid http(s) URL")
		}
	}

	switch c.Pipeline.Scopes {
	case "session", "workspace", "both", "all":
	default:
		errs = append(errs, fmt.Sprintf("PIPELINE_SCOPES must be session|workspace|both|all, got %q", c.Pipeline.Scopes))
	}

	switch c.Pipeline.GroupStrategy {
	case "raw", "hashed":
	default:
		errs = append(errs, fmt.Sprintf("PIPELINE_GROUP_STRATEGY must be raw|hashed, got %q", c.Pipeline.GroupStrategy))
	}

	if c.Pipeline.MaxBatchSize < 1 {
		errs = append(errs, "PIPELINE_MAX_BATCH_SIZE must be positive")
	}
	if c.Pipeline.MaxQueueSize < 1 {
		errs = append(errs, "PIPELINE_MAX_QUEUE_SIZE must be positive")
	}
	if c.Pipeline.BackoffInitial <= 0 || c.Pipeline.BackoffMax < c.Pipeline.BackoffInitial {
		errs = append(errs, "PIPELINE_BACKOFF_MAX must be >= PIPELINE_BACKOFF_INITIAL > 0")
	}

	if c.Pipeline.Enabled && c.Pipeline.WorkspaceID == "" {
		errs = append(errs, "PIPELINE_WORKSPACE_ID is required when the pipeline is enabled")
	}

	// API token: warn only, the ingest/admin surface runs open without it.
	if c.API.Token == "" {
		slog.Warn("API_TOKEN is empty, ingest and admin endpoints have no authentication")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

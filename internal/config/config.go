package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	NATS     NATSConfig
	API      APIConfig
	Memory   MemoryConfig
	Pipeline PipelineConfig
	Git      GitConfig
	Log      LogConfig
}

// GitConfig carries pre-resolved git/ownership metadata; nothing here
// is collected at runtime.
type GitConfig struct {
	Repo   string
	Branch string
	Owner  string
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type APIConfig struct {
	Token              string
	CORSAllowedOrigins []string
	RateLimitMaxReqs   int
	RateLimitWindowSec int
}

// MemoryConfig locates the external knowledge-graph memory service.
type MemoryConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// PipelineConfig controls the ingestion and recall pipeline.
type PipelineConfig struct {
	Enabled           bool
	Scopes            string // session | workspace | both | all
	GroupStrategy     string // raw | hashed
	WorkspaceID       string
	WorkspaceKey      string
	UserKey           string
	MaxBatchSize      int
	MaxQueueSize      int
	MaxMessageChars   int
	MaxRecallFacts    int
	FlushDebounce     time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackfillInterval  time.Duration
	BackfillPerTick   int
	DedupMaxGroups    int
	DedupMaxTurns     int
	IncludeOwnership  bool
	IncludeSourceDesc bool
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		API: APIConfig{
			Token:              k.String("api.token"),
			CORSAllowedOrigins: k.Strings("api.cors.origins"),
			RateLimitMaxReqs:   k.Int("api.ratelimit.max"),
			RateLimitWindowSec: k.Int("api.ratelimit.window"),
		},
		Memory: MemoryConfig{
			Endpoint: k.String("memory.endpoint"),
		},
		Pipeline: PipelineConfig{
			Enabled:           k.Bool("pipeline.enabled"),
			Scopes:            k.String("pipeline.scopes"),
			GroupStrategy:     k.String("pipeline.group.strategy"),
			WorkspaceID:       k.String("pipeline.workspace.id"),
			WorkspaceKey:      k.String("pipeline.workspace.key"),
			UserKey:           k.String("pipeline.user.key"),
			MaxBatchSize:      k.Int("pipeline.max.batch.size"),
			MaxQueueSize:      k.Int("pipeline.max.queue.size"),
			MaxMessageChars:   k.Int("pipeline.max.message.chars"),
			MaxRecallFacts:    k.Int("pipeline.max.recall.facts"),
			BackfillPerTick:   k.Int("pipeline.backfill.per.tick"),
			DedupMaxGroups:    k.Int("pipeline.dedup.max.groups"),
			DedupMaxTurns:     k.Int("pipeline.dedup.max.turns"),
			IncludeOwnership:  k.Bool("pipeline.include.ownership"),
			IncludeSourceDesc: k.Bool("pipeline.include.source.desc"),
		},
		Git: GitConfig{
			Repo:   k.String("git.repo"),
			Branch: k.String("git.branch"),
			Owner:  k.String("git.owner"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8460
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.API.RateLimitMaxReqs == 0 {
		cfg.API.RateLimitMaxReqs = 120
	}
	if cfg.API.RateLimitWindowSec == 0 {
		cfg.API.RateLimitWindowSec = 60
	}
	if cfg.Pipeline.Scopes == "" {
		cfg.Pipeline.Scopes = "both"
	}
	if cfg.Pipeline.GroupStrategy == "" {
		cfg.Pipeline.GroupStrategy = "hashed"
	}
	if cfg.Pipeline.MaxBatchSize == 0 {
		cfg.Pipeline.MaxBatchSize = 20
	}
	if cfg.Pipeline.MaxQueueSize == 0 {
		cfg.Pipeline.MaxQueueSize = 1000
	}
	if cfg.Pipeline.MaxMessageChars == 0 {
		cfg.Pipeline.MaxMessageChars = 8000
	}
	if cfg.Pipeline.MaxRecallFacts == 0 {
		cfg.Pipeline.MaxRecallFacts = 20
	}
	if cfg.Pipeline.BackfillPerTick == 0 {
		cfg.Pipeline.BackfillPerTick = 25
	}
	if cfg.Pipeline.DedupMaxGroups == 0 {
		cfg.Pipeline.DedupMaxGroups = 50
	}
	if cfg.Pipeline.DedupMaxTurns == 0 {
		cfg.Pipeline.DedupMaxTurns = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Memory.Timeout, err = parseDuration(k, "memory.timeout", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.FlushDebounce, err = parseDuration(k, "pipeline.flush.debounce", "250ms")
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.BackoffInitial, err = parseDuration(k, "pipeline.backoff.initial", "500ms")
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.BackoffMax, err = parseDuration(k, "pipeline.backoff.max", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Pipeline.BackfillInterval, err = parseDuration(k, "pipeline.backfill.interval", "2s")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

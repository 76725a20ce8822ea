package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8460},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		API:    APIConfig{Token: "secret"},
		Memory: MemoryConfig{Endpoint: "http://localhost:8000", Timeout: 30 * time.Second},
		Pipeline: PipelineConfig{
			Enabled:        true,
			Scopes:         "both",
			GroupStrategy:  "hashed",
			WorkspaceID:    "ws-1",
			MaxBatchSize:   20,
			MaxQueueSize:   1000,
			BackoffInitial: 500 * time.Millisecond,
			BackoffMax:     30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_BadServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
}

func TestValidate_BadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"not a url", "ftp://x", "http://"} {
		cfg := validConfig()
		cfg.Memory.Endpoint = endpoint
		err := cfg.Validate()
		require.Error(t, err, "endpoint %q", endpoint)
		assert.Contains(t, err.Error(), "MEMORY_ENDPOINT")
	}
}

func TestValidate_EmptyEndpointAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Memory.Endpoint = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadScopes(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Scopes = "global"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_SCOPES")
}

func TestValidate_BadGroupStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.GroupStrategy = "plaintext"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_GROUP_STRATEGY")
}

func TestValidate_BackoffOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.BackoffMax = 100 * time.Millisecond
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_BACKOFF_MAX")
}

func TestValidate_WorkspaceRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.WorkspaceID = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_WORKSPACE_ID")

	cfg.Pipeline.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.Pipeline.Scopes = "nope"
	cfg.Pipeline.MaxBatchSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 3, strings.Count(err.Error(), "\n  "))
}

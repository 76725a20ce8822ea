package consent

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membridge/membridge/internal/config"
	"github.com/membridge/membridge/internal/pipeline"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestStore_TrustDefaultsToFalse(t *testing.T) {
	store := setupStore(t)
	trusted, err := store.Trusted(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestStore_SetTrustedRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetTrusted(ctx, "ws-1", true))
	trusted, err := store.Trusted(ctx, "ws-1")
	require.NoError(t, err)
	assert.True(t, trusted)

	require.NoError(t, store.SetTrusted(ctx, "ws-1", false))
	trusted, err = store.Trusted(ctx, "ws-1")
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestStore_ConsentPerEndpoint(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ok, err := store.EndpointConsented(ctx, "ws-1", "http://a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.GrantEndpoint(ctx, "ws-1", "http://a"))

	ok, err = store.EndpointConsented(ctx, "ws-1", "http://a")
	require.NoError(t, err)
	assert.True(t, ok)

	// Consent is endpoint-specific.
	ok, err = store.EndpointConsented(ctx, "ws-1", "http://b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RevokeEndpoint(ctx, "ws-1", "http://a"))
	ok, err = store.EndpointConsented(ctx, "ws-1", "http://a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func resolverConfig() *config.Config {
	return &config.Config{
		Memory: config.MemoryConfig{Endpoint: "http://memory.test"},
		Pipeline: config.PipelineConfig{
			Enabled:     true,
			Scopes:      "both",
			WorkspaceID: "ws-1",
		},
	}
}

func TestResolver_FailsClosedUntilTrustedAndConsented(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	cfg := resolverConfig()
	r := NewResolver(cfg, store)

	_, ok := r.Resolve(ctx)
	assert.False(t, ok, "untrusted workspace")

	require.NoError(t, store.SetTrusted(ctx, "ws-1", true))
	_, ok = r.Resolve(ctx)
	assert.False(t, ok, "un-consented endpoint")

	require.NoError(t, store.GrantEndpoint(ctx, "ws-1", "http://memory.test"))
	resolved, ok := r.Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, "http://memory.test", resolved.Endpoint)
	assert.Equal(t, "both", resolved.Scopes)
}

func TestResolver_DisabledOrMissingEndpoint(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetTrusted(ctx, "ws-1", true))
	require.NoError(t, store.GrantEndpoint(ctx, "ws-1", "http://memory.test"))

	cfg := resolverConfig()
	cfg.Pipeline.Enabled = false
	_, ok := NewResolver(cfg, store).Resolve(ctx)
	assert.False(t, ok)

	cfg = resolverConfig()
	cfg.Memory.Endpoint = ""
	_, ok = NewResolver(cfg, store).Resolve(ctx)
	assert.False(t, ok)
}

var _ pipeline.Resolver = (*Resolver)(nil)

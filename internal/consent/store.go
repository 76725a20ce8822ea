package consent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/membridge/membridge/internal/config"
)

// Store keeps workspace trust and per-endpoint consent records in
// Redis so every relay replica resolves the same answer. Both default
// to denied: an unknown workspace is untrusted and an unknown endpoint
// is un-consented.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("connected to Redis", "addr", cfg.Addr())
	return client, nil
}

func trustKey(workspaceID string) string {
	return "trust:ws:" + workspaceID
}

func consentKey(workspaceID string) string {
	return "consent:ws:" + workspaceID
}

// SetTrusted marks or unmarks a workspace as trusted.
func (s *Store) SetTrusted(ctx context.Context, workspaceID string, trusted bool) error {
	if !trusted {
		return s.client.Del(ctx, trustKey(workspaceID)).Err()
	}
	return s.client.Set(ctx, trustKey(workspaceID), "trusted", 0).Err()
}

// Trusted reports whether the workspace has been marked trusted.
func (s *Store) Trusted(ctx context.Context, workspaceID string) (bool, error) {
	_, err := s.client.Get(ctx, trustKey(workspaceID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", trustKey(workspaceID), err)
	}
	return true, nil
}

// GrantEndpoint records consent for delivering this workspace's
// conversations to the given endpoint.
func (s *Store) GrantEndpoint(ctx context.Context, workspaceID, endpoint string) error {
	return s.client.HSet(ctx, consentKey(workspaceID), endpoint, "granted").Err()
}

// RevokeEndpoint withdraws consent for the given endpoint.
func (s *Store) RevokeEndpoint(ctx context.Context, workspaceID, endpoint string) error {
	return s.client.HDel(ctx, consentKey(workspaceID), endpoint).Err()
}

// EndpointConsented reports whether the workspace has consented to the
// given endpoint.
func (s *Store) EndpointConsented(ctx context.Context, workspaceID, endpoint string) (bool, error) {
	v, err := s.client.HGet(ctx, consentKey(workspaceID), endpoint).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hget %s: %w", consentKey(workspaceID), err)
	}
	return v == "granted", nil
}

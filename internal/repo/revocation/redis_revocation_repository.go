package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

const keyPrefix = "revoked:"

// RedisRepositoryConfig holds the connection settings of the redis revocation list.
// The list is disabled when Addr is empty.
type RedisRepositoryConfig struct {
	Addr     string `env:"REDIS_ADDR" default:""`
	Password string `env:"REDIS_PASSWORD" default:""`
	DB       int    `env:"REDIS_DB" default:"0"`
}

// RedisRepository implements Repository with keys that expire together with the token.
type RedisRepository struct {
	client *redis.Client
	clock  clock.Clock
	log    logging.Logger
}

var _ Repository = (*RedisRepository)(nil)

// New returns the repository selected by cfg: redis when an address is set,
// otherwise a NopRepository.
func New(ctx context.Context, cfg RedisRepositoryConfig) (Repository, error) {
	if cfg.Addr == "" {
		return NopRepository{}, nil
	}

	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisRepository(client, clock.Real{}), nil
}

// NewRedisRepository creates a RedisRepository on an existing client.
func NewRedisRepository(client *redis.Client, clk clock.Clock) *RedisRepository {
	return &RedisRepository{
		client: client,
		clock:  clk,
		log:    logging.GetLogger("repo.revocation.redis_repository"),
	}
}

// Revoke implements Repository.Revoke. Entries for already expired tokens are skipped.
func (r *RedisRepository) Revoke(ctx context.Context, tokenID string, until time.Time) (err error) {
	ttl := until.Sub(r.clock.Now())

	defer func() {
		log := r.log.With(logging.Group("token", "id", tokenID, "ttl", ttl))
		if err != nil {
			log.ErrorContext(ctx, "revoke token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token revoked")
		}
	}()

	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, keyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return nil
}

// IsRevoked implements Repository.IsRevoked.
func (r *RedisRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return n > 0, nil
}

// Close implements Repository.Close by closing the redis client.
func (r *RedisRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}

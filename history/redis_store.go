package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/types"
)

// maxLogLength bounds each session list so an abandoned session cannot grow
// Redis without limit.
const maxLogLength = 500

// RedisStore is a Redis-backed Store. Each session is one list of
// JSON-encoded turns, trimmed to a bounded length.
// Suitable for distributed production deployments.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "tutorflow:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "history:",
		logger:    logger.With(zap.String("component", "history_store_redis")),
	}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "tutorflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "history:",
		logger:    logger.With(zap.String("component", "history_store_redis")),
	}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks store health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.sessionKey(sessionID), data)
	pipe.LTrim(ctx, s.sessionKey(sessionID), -maxLogLength, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrStoreIO, "append turn").WithCause(err).WithRetryable(true)
	}
	return nil
}

func (s *RedisStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]types.Message, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, types.NewError(types.ErrStoreIO, "read turns").WithCause(err).WithRetryable(true)
	}

	turns := make([]types.Message, 0, len(raw))
	for _, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// Skip corrupt entries rather than losing the whole session.
			s.logger.Warn("skipping unreadable turn",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}
		turns = append(turns, msg)
	}
	return turns, nil
}

func (s *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return types.NewError(types.ErrStoreIO, "clear session").WithCause(err).WithRetryable(true)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*InMemoryStore)(nil)

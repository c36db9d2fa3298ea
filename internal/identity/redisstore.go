package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Deepayon/LocalSeva/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	// session:{token} -> session JSON
	sessionKeyPrefix = "session:"
	// user:{id} -> user profile JSON
	userKeyPrefix = "user:"
)

type sessionRecord struct {
	UserID  string `json:"userId"`
	Expires int64  `json:"expires"` // unix seconds
}

type userRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	NeighborhoodID string `json:"neighborhoodId"`
}

// RedisStore reads sessions and user profiles from the shared Redis
// the auth endpoints write to.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(cfg config.RedisConfig, logger *slog.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		rdb:    rdb,
		logger: logger.With(slog.String("component", "identity_store_redis")),
	}
}

func (s *RedisStore) LookupSession(ctx context.Context, token string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &Session{
		UserID:  rec.UserID,
		Expires: time.Unix(rec.Expires, 0),
	}, nil
}

func (s *RedisStore) LookupUser(ctx context.Context, userID string) (*User, error) {
	raw, err := s.rdb.Get(ctx, userKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &User{
		ID:             rec.ID,
		Name:           rec.Name,
		Role:           rec.Role,
		NeighborhoodID: rec.NeighborhoodID,
	}, nil
}

// Ping verifies the store is reachable. Called once at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loganmanery/cryptokit/pkg/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the redis token store
var ErrRedisUnavailable = errors.New("token redis unavailable")

// RedisTokenStore implements TokenStore on redis. Records expire with their token.
type RedisTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisTokenStore creates a token store that namespaces keys with prefix
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "ckt"
	}
	return &RedisTokenStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisTokenStore) key(id string) string {
	return s.prefix + ":" + id
}

// SaveToken stores record with a TTL matching its lifetime, measured from CreatedAt when set so the
// caller's clock decides the expiry. Records without an expiry do not expire.
func (s *RedisTokenStore) SaveToken(ctx context.Context, record *models.TokenRecord) error {
	var ttl time.Duration
	if !record.ExpiresAt.IsZero() {
		if record.CreatedAt.IsZero() {
			ttl = time.Until(record.ExpiresAt)
		} else {
			ttl = record.ExpiresAt.Sub(record.CreatedAt)
		}
		if ttl <= 0 {
			return errors.New("token record already expired")
		}
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(record.ID), encoded, ttl).Result()
	if err != nil {
		return errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}
	if !ok {
		return errors.Errorf("token %s already exists", record.ID)
	}
	return nil
}

// GetToken retrieves a token record by ID
func (s *RedisTokenStore) GetToken(ctx context.Context, id string) (*models.TokenRecord, error) {
	raw, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}

	var record models.TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "corrupt token record")
	}
	return &record, nil
}

// DeleteToken removes a token record
func (s *RedisTokenStore) DeleteToken(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredTokens is a no-op; redis expires records itself
func (s *RedisTokenStore) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

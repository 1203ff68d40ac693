package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

const authzKeyPrefix = "retention:authz:"

// RedisAuthorizationStore is the production authorization store. GETDEL
// gives atomic consume-once semantics across instances, and Redis expiry
// enforces the TTL without a sweeper.
type RedisAuthorizationStore struct {
	client *redis.Client
}

func NewRedisAuthorizationStore(client *redis.Client) *RedisAuthorizationStore {
	return &RedisAuthorizationStore{client: client}
}

type redisAuthz struct {
	ID         string    `json:"id"`
	EnvelopeID string    `json:"envelope_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *RedisAuthorizationStore) Put(ctx context.Context, authz DeleteAuthorization, ttl time.Duration) error {
	body, err := json.Marshal(redisAuthz{
		ID:         authz.ID.String(),
		EnvelopeID: authz.EnvelopeID.String(),
		IssuedAt:   authz.IssuedAt,
		ExpiresAt:  authz.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode delete authorization: %w", err)
	}

	key := authzKeyPrefix + authz.ID.String()
	if err := s.client.Set(ctx, key, body, ttl).Err(); err != nil {
		return fmt.Errorf("store delete authorization: %w", err)
	}
	return nil
}

func (s *RedisAuthorizationStore) Consume(ctx context.Context, token id.AuthorizationID) (DeleteAuthorization, error) {
	key := authzKeyPrefix + token.String()

	raw, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return DeleteAuthorization{}, sentinel.ErrNotFound
	}
	if err != nil {
		return DeleteAuthorization{}, fmt.Errorf("consume delete authorization: %w", err)
	}

	var stored redisAuthz
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return DeleteAuthorization{}, fmt.Errorf("decode delete authorization: %w", err)
	}

	authzID, err := id.ParseAuthorizationID(stored.ID)
	if err != nil {
		return DeleteAuthorization{}, fmt.Errorf("decode delete authorization: %w", err)
	}
	envelopeID, err := id.ParseEnvelopeID(stored.EnvelopeID)
	if err != nil {
		return DeleteAuthorization{}, fmt.Errorf("decode delete authorization: %w", err)
	}

	return DeleteAuthorization{
		ID:         authzID,
		EnvelopeID: envelopeID,
		IssuedAt:   stored.IssuedAt,
		ExpiresAt:  stored.ExpiresAt,
	}, nil
}

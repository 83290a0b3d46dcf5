package risk

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisReputationStore checks IPs against a deny-set held in Redis. The set
// is maintained out of band by the abuse tooling; this service only reads.
type RedisReputationStore struct {
	client *redis.Client
	setKey string
}

func NewRedisReputationStore(client *redis.Client, setKey string) *RedisReputationStore {
	return &RedisReputationStore{client: client, setKey: setKey}
}

func (s *RedisReputationStore) IsFlagged(ctx context.Context, ip string) (bool, error) {
	flagged, err := s.client.SIsMember(ctx, s.setKey, ip).Result()
	if err != nil {
		return false, fmt.Errorf("reputation set lookup: %w", err)
	}
	return flagged, nil
}

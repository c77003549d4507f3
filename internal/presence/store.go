// Package presence tracks which users currently hold a websocket connection,
// in Redis so other instances (and the REST tier) can look it up. Presence is
// a routing hint only; correctness never depends on it.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 90 * time.Second

type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// SetOnline marks userID online with a TTL; Refresh extends it on ping.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, s.key(userID), time.Now().Unix(), defaultTTL).Err()
}

func (s *Store) Refresh(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, s.key(userID), defaultTTL).Err()
}

func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

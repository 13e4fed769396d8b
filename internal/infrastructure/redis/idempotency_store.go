package redisstore

import (
	"context"
	"time"

	"forexsync/internal/application"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "forexsync:"

type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

var (
	_ application.IdempotencyStore = (*Store)(nil)
	_ application.RunLock          = (*Store)(nil)
)

func (s *Store) TryReserve(ctx context.Context, key string) (bool, error) {
	return s.Client.SetNX(ctx, keyPrefix+"idem:"+key, "1", s.TTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// Acquire takes the named run lock for at most ttl. The returned release only
// deletes the lock if this holder still owns it.
func (s *Store) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), bool, error) {
	key, token := keyPrefix+"lock:"+name, uuid.NewString()
	ok, err := s.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, s.Client, []string{key}, token).Err()
	}
	return release, true, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.Client.Ping(ctx).Err() }

package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/voice-audit/internal/common"
)

const lockPrefix = "voice-audit:lock:"

// only the holder may release
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held lease on a named lock.
type Lock struct {
	store *Store
	key   string
	token string
}

func LockKey(name string) string { return lockPrefix + name }

// TryLock takes the named lock for ttl. It returns (nil, nil) when another holder has it.
func (s *Store) TryLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	token, err := common.NewToken(16)
	if err != nil {
		return nil, err
	}
	key := LockKey(name)
	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lock{store: s, key: key, token: token}, nil
}

func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.store.rdb, []string{l.key}, l.token).Err()
}

// WithLock runs fn while holding the named lock. ran is false when another holder has it.
func (s *Store) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (ran bool, err error) {
	l, err := s.TryLock(ctx, name, ttl)
	if err != nil || l == nil {
		return false, err
	}
	defer func() {
		if rerr := l.Release(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return true, fn(ctx)
}

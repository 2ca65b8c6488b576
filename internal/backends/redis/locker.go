package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements ports.Locker with SET NX PX.
type Locker struct {
	cli *redis.Client
}

func NewLocker(cli *redis.Client) *Locker {
	return &Locker{cli: cli}
}

func (l *Locker) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return l.cli.SetNX(ctx, getLockKey(key), owner, ttl).Result()
}

func (l *Locker) Release(ctx context.Context, key, owner string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.cli, []string{getLockKey(key)}, owner).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

// Locker is the native admission lock: SET NX with a per-holder token and
// a TTL so a crashed holder frees up on its own. Unlock compares the token
// before deleting, so an expired-and-stolen lock is never released by its
// previous holder.
type Locker struct {
	cli *redis.Client
}

func NewLocker(cfg *redis.Options) *Locker {
	return &Locker{cli: redis.NewClient(cfg)}
}

func NewLockerFromClient(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl, timeout time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", domain.ErrAdmissionTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

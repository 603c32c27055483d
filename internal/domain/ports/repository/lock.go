package repository

import (
	"context"
	"time"
)

// Locker serializes "begin a new turn" across every client instance open
// for the same user. TryLock blocks up to timeout and returns an opaque
// token on success, or domain.ErrAdmissionTimeout. The lock expires on its
// own after ttl so a crashed holder cannot starve other instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl, timeout time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

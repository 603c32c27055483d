// Package lease implements the admission lock fallback for stores without
// a native mutual-exclusion primitive. A lease is a timestamped ownership
// token written into the same KV surface as the pending-turn records; a
// competitor may steal it only after it has visibly expired, so a crashed
// holder delays others by at most the lease TTL.
package lease

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

type record struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Locker struct {
	kv  repository.KV
	now func() time.Time

	// settle is how long a writer waits before reading its claim back.
	// Two near-simultaneous claimants both write; after the settle window
	// only the last write survives, and only that claimant proceeds.
	settle time.Duration
}

func NewLocker(kv repository.KV) *Locker {
	return &Locker{kv: kv, now: time.Now, settle: 15 * time.Millisecond}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl, timeout time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := l.now().Add(timeout)
	for {
		if ok, err := l.claim(ctx, key, token, ttl); err == nil && ok {
			return token, nil
		}
		if l.now().After(deadline) {
			return "", domain.ErrAdmissionTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.settle + time.Duration(rand.Intn(20))*time.Millisecond):
		}
	}
}

func (l *Locker) claim(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cur, ok, err := l.kv.GetRaw(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		var r record
		if json.Unmarshal([]byte(cur), &r) == nil && l.now().Before(r.ExpiresAt) {
			return false, nil // held and not expired
		}
		// expired or unreadable: stealable
	}
	data, err := json.Marshal(record{Token: token, ExpiresAt: l.now().Add(ttl)})
	if err != nil {
		return false, err
	}
	if err := l.kv.PutRaw(ctx, key, string(data)); err != nil {
		return false, err
	}
	// Read back after a settle window. If another claimant wrote over us
	// in the race, exactly one of us sees its own token here.
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(l.settle):
	}
	cur, ok, err = l.kv.GetRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	var r record
	if err := json.Unmarshal([]byte(cur), &r); err != nil {
		return false, nil
	}
	return r.Token == token, nil
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	cur, ok, err := l.kv.GetRaw(ctx, key)
	if err != nil || !ok {
		return err
	}
	var r record
	if err := json.Unmarshal([]byte(cur), &r); err != nil {
		return nil
	}
	if r.Token != token {
		return nil // expired and stolen; not ours to release
	}
	return l.kv.DelRaw(ctx, key)
}

package repository

import (
	"context"

	"tutor-chat-client/internal/domain/model"
)

// PendingTurnStore is the shared persisted surface for in-flight turn
// records, keyed by (user, session). At most one record exists per key;
// Put always supersedes.
//
// Implementations must be forgiving on both sides of the wire: a failed
// write is swallowed (the in-memory turn still completes), and a corrupt
// stored payload reads as absent rather than as an error.
type PendingTurnStore interface {
	Get(ctx context.Context, userID, sessionID string) (*model.PendingTurn, error)
	Put(ctx context.Context, userID string, turn *model.PendingTurn) error
	Clear(ctx context.Context, userID, sessionID string) error
	// List returns every pending record for the user, for cold-start resume.
	List(ctx context.Context, userID string) ([]*model.PendingTurn, error)
}

// KV is the raw key-value surface a store exposes so the lease-based lock
// fallback can share the same storage as the records themselves.
type KV interface {
	GetRaw(ctx context.Context, key string) (string, bool, error)
	PutRaw(ctx context.Context, key, value string) error
	DelRaw(ctx context.Context, key string) error
}

package model

import "time"

// TurnStatus is the server-reported state of a chat job.
type TurnStatus string

const (
	TurnStatusQueued     TurnStatus = "queued"
	TurnStatusProcessing TurnStatus = "processing"
	TurnStatusDone       TurnStatus = "done"
	TurnStatusFailed     TurnStatus = "failed"
	TurnStatusCancelled  TurnStatus = "cancelled"
)

// IsTerminal reports whether no further transition can occur. Unrecognized
// values count as terminal: the server is telling us something we don't
// understand, and continuing to poll would never resolve it.
func (s TurnStatus) IsTerminal() bool {
	switch s {
	case TurnStatusQueued, TurnStatusProcessing:
		return false
	}
	return true
}

// Normalize folds unrecognized terminal values into failed.
func (s TurnStatus) Normalize() TurnStatus {
	switch s {
	case TurnStatusQueued, TurnStatusProcessing, TurnStatusDone, TurnStatusFailed, TurnStatusCancelled:
		return s
	}
	return TurnStatusFailed
}

// PendingTurn is the persisted record of one in-flight chat turn. It is the
// only source of truth for "a turn is in flight" after a client restart, so
// its wire form must stay additive: fields may be added but never renamed
// or repurposed.
type PendingTurn struct {
	JobID         string    `json:"job_id"`
	RequestID     string    `json:"request_id"`
	PlaceholderID string    `json:"placeholder_id"`
	UserText      string    `json:"user_text"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewPendingTurn(sessionID, requestID, placeholderID, userText string) *PendingTurn {
	return &PendingTurn{
		RequestID:     requestID,
		PlaceholderID: placeholderID,
		UserText:      userText,
		SessionID:     sessionID,
		CreatedAt:     time.Now(),
	}
}

// Age returns how long ago the turn was submitted, by the local clock.
func (p *PendingTurn) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// Stale reports whether the record is older than the given threshold.
// Stale records whose job the server no longer recognizes are orphans and
// may be discarded by whoever notices first.
func (p *PendingTurn) Stale(now time.Time, threshold time.Duration) bool {
	return p.Age(now) > threshold
}

package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// TranscriptEntry is one bubble in a session transcript. Pending entries
// are the provisional "assistant is thinking" placeholder; exactly one may
// exist per session at a time.
type TranscriptEntry struct {
	ID            string
	Role          string // "user" | "assistant"
	Text          string
	Pending       bool
	Failed        bool
	QueuePosition int // 0 when unknown or at front
	QueueSize     int
	At            time.Time
}

// Transcript is the ordered message view of a single session. It is a pure
// in-memory structure; the coordinator rebuilds it from the pending-turn
// store and fetched history after a restart.
type Transcript struct {
	SessionID string
	Entries   []TranscriptEntry
}

// NewEntryID returns a lexicographically sortable entry identifier.
func NewEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// PendingEntry returns a pointer into the entry slice for the placeholder
// entry, or nil if the session has none in flight.
func (t Transcript) PendingEntry() *TranscriptEntry {
	for i := range t.Entries {
		if t.Entries[i].Pending {
			return &t.Entries[i]
		}
	}
	return nil
}

// Append adds an entry at the end of the transcript.
func (t *Transcript) Append(e TranscriptEntry) {
	t.Entries = append(t.Entries, e)
}

// Resolve replaces the pending entry with a final assistant entry, keeping
// its position in the transcript. Returns false if no pending entry with
// that id exists (already resolved, or never created here).
func (t *Transcript) Resolve(placeholderID, text string, failed bool) bool {
	for i := range t.Entries {
		if t.Entries[i].ID == placeholderID && t.Entries[i].Pending {
			t.Entries[i].Pending = false
			t.Entries[i].Failed = failed
			t.Entries[i].Text = text
			t.Entries[i].At = time.Now()
			t.Entries[i].QueuePosition = 0
			t.Entries[i].QueueSize = 0
			return true
		}
	}
	return false
}

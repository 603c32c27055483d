// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/adapter"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase keeps per-session transcripts consistent with the turn
// lifecycle: a completed reply lands in its originating session only, a
// session shows at most one pending placeholder, and fetched history never
// duplicates a live-completed bubble.
type ReconcileUseCase interface {
	BeginTurn(sessionID, placeholderID, userText string)
	EnsurePlaceholder(turn *model.PendingTurn)
	UpdateQueue(turn *model.PendingTurn, position, size int)
	CompleteTurn(turn *model.PendingTurn, reply string)
	FailTurn(turn *model.PendingTurn, detail string)
	MergeHistory(sessionID string, msgs []adapter.HistoryMessage)
	Transcript(sessionID string) model.Transcript
	RecentMessages(sessionID string, n int) []adapter.Message
}

type reconcileUC struct {
	mu       sync.Mutex
	sessions map[string]*model.Transcript

	// dedupWindow is the time tolerance when matching a history message
	// against an existing entry. Zero timestamps always match on text.
	dedupWindow time.Duration

	sink adapter.TranscriptSink
	log  *zerolog.Logger
}

func NewReconcileUseCase(dedupWindow time.Duration, sink adapter.TranscriptSink, log *zerolog.Logger) *reconcileUC {
	if sink == nil {
		sink = adapter.NoopSink{}
	}
	return &reconcileUC{
		sessions:    make(map[string]*model.Transcript),
		dedupWindow: dedupWindow,
		sink:        sink,
		log:         log,
	}
}

func (r *reconcileUC) transcript(sessionID string) *model.Transcript {
	t, ok := r.sessions[sessionID]
	if !ok {
		t = &model.Transcript{SessionID: sessionID}
		r.sessions[sessionID] = t
	}
	return t
}

func (r *reconcileUC) BeginTurn(sessionID, placeholderID, userText string) {
	r.mu.Lock()
	t := r.transcript(sessionID)
	now := time.Now()
	t.Append(model.TranscriptEntry{ID: model.NewEntryID(), Role: "user", Text: userText, At: now})
	t.Append(model.TranscriptEntry{ID: placeholderID, Role: "assistant", Pending: true, At: now})
	r.mu.Unlock()
	r.sink.TranscriptUpdated(sessionID)
}

// EnsurePlaceholder reconstructs the in-progress view for a session with a
// live pending record, after a restart or a switch back into the session.
// Idempotent: repeated calls leave exactly one placeholder.
func (r *reconcileUC) EnsurePlaceholder(turn *model.PendingTurn) {
	r.mu.Lock()
	t := r.transcript(turn.SessionID)
	if p := t.PendingEntry(); p != nil {
		r.mu.Unlock()
		return
	}
	for i := range t.Entries {
		if t.Entries[i].ID == turn.PlaceholderID {
			// already resolved; nothing in progress to show
			r.mu.Unlock()
			return
		}
	}
	if !r.hasUserEntry(t, turn.UserText, turn.CreatedAt) {
		t.Append(model.TranscriptEntry{ID: model.NewEntryID(), Role: "user", Text: turn.UserText, At: turn.CreatedAt})
	}
	t.Append(model.TranscriptEntry{ID: turn.PlaceholderID, Role: "assistant", Pending: true, At: turn.CreatedAt})
	r.mu.Unlock()
	r.sink.TranscriptUpdated(turn.SessionID)
}

func (r *reconcileUC) UpdateQueue(turn *model.PendingTurn, position, size int) {
	if position == 0 && size == 0 {
		return
	}
	r.mu.Lock()
	t := r.transcript(turn.SessionID)
	changed := false
	if p := t.PendingEntry(); p != nil && p.ID == turn.PlaceholderID {
		p.QueuePosition = position
		p.QueueSize = size
		changed = true
	}
	r.mu.Unlock()
	if changed {
		r.sink.TranscriptUpdated(turn.SessionID)
	}
}

// CompleteTurn renders the reply into the turn's originating session.
// Re-delivery of an already-resolved completion is a no-op.
func (r *reconcileUC) CompleteTurn(turn *model.PendingTurn, reply string) {
	r.resolve(turn, reply, false)
}

func (r *reconcileUC) FailTurn(turn *model.PendingTurn, detail string) {
	if detail == "" {
		detail = "The assistant could not answer. Please try again."
	}
	r.resolve(turn, detail, true)
}

func (r *reconcileUC) resolve(turn *model.PendingTurn, text string, failed bool) {
	r.mu.Lock()
	t := r.transcript(turn.SessionID)
	if t.Resolve(turn.PlaceholderID, text, failed) {
		r.mu.Unlock()
		r.sink.TranscriptUpdated(turn.SessionID)
		return
	}
	for i := range t.Entries {
		if t.Entries[i].ID == turn.PlaceholderID {
			// resolved by an earlier delivery
			r.mu.Unlock()
			return
		}
	}
	// The session was never rendered here (completed before first visit).
	// Materialize both sides of the turn.
	if !r.hasUserEntry(t, turn.UserText, turn.CreatedAt) {
		t.Append(model.TranscriptEntry{ID: model.NewEntryID(), Role: "user", Text: turn.UserText, At: turn.CreatedAt})
	}
	t.Append(model.TranscriptEntry{ID: turn.PlaceholderID, Role: "assistant", Text: text, Failed: failed, At: time.Now()})
	r.mu.Unlock()
	r.sink.TranscriptUpdated(turn.SessionID)
}

// MergeHistory folds asynchronously fetched history into the transcript,
// suppressing messages already present from the live path. Matching is by
// role and exact text within the dedup window; a missing timestamp on
// either side matches on text alone.
func (r *reconcileUC) MergeHistory(sessionID string, msgs []adapter.HistoryMessage) {
	r.mu.Lock()
	t := r.transcript(sessionID)
	added := false
	for _, m := range msgs {
		if r.hasEntry(t, m.Role, m.Content, m.Timestamp) {
			continue
		}
		at := m.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		t.Append(model.TranscriptEntry{ID: model.NewEntryID(), Role: m.Role, Text: m.Content, At: at})
		added = true
	}
	r.mu.Unlock()
	if added {
		r.sink.TranscriptUpdated(sessionID)
	}
}

func (r *reconcileUC) hasUserEntry(t *model.Transcript, text string, at time.Time) bool {
	return r.hasEntry(t, "user", text, at)
}

func (r *reconcileUC) hasEntry(t *model.Transcript, role, text string, at time.Time) bool {
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Role != role || e.Text != text || e.Pending {
			continue
		}
		if at.IsZero() || e.At.IsZero() {
			return true
		}
		d := e.At.Sub(at)
		if d < 0 {
			d = -d
		}
		if d <= r.dedupWindow {
			return true
		}
	}
	return false
}

// Transcript returns a snapshot copy safe for rendering.
func (r *reconcileUC) Transcript(sessionID string) model.Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.transcript(sessionID)
	cp := model.Transcript{SessionID: sessionID, Entries: make([]model.TranscriptEntry, len(t.Entries))}
	copy(cp.Entries, t.Entries)
	return cp
}

// RecentMessages returns the last n resolved entries as wire messages for
// the next start call's context.
func (r *reconcileUC) RecentMessages(sessionID string, n int) []adapter.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.transcript(sessionID)
	msgs := make([]adapter.Message, 0, n)
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Pending || e.Failed {
			continue
		}
		msgs = append(msgs, adapter.Message{Role: e.Role, Content: e.Text})
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

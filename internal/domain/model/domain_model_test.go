package model

import (
	"testing"
	"time"
)

func TestTurnStatusTerminal(t *testing.T) {
	cases := []struct {
		status   TurnStatus
		terminal bool
	}{
		{TurnStatusQueued, false},
		{TurnStatusProcessing, false},
		{TurnStatusDone, true},
		{TurnStatusFailed, true},
		{TurnStatusCancelled, true},
		{TurnStatus("exploded"), true}, // unrecognized values terminate the turn
	}
	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("IsTerminal(%q) = %v, want %v", c.status, got, c.terminal)
		}
	}
}

func TestTurnStatusNormalizeFoldsUnknownIntoFailed(t *testing.T) {
	if got := TurnStatus("exploded").Normalize(); got != TurnStatusFailed {
		t.Fatalf("Normalize(unknown) = %q, want failed", got)
	}
	if got := TurnStatusCancelled.Normalize(); got != TurnStatusCancelled {
		t.Fatalf("Normalize(cancelled) = %q, want cancelled", got)
	}
}

func TestPendingTurnStaleness(t *testing.T) {
	turn := NewPendingTurn("main", "req-1", "ph-1", "hello")
	now := turn.CreatedAt

	if turn.Stale(now.Add(30*time.Second), time.Minute) {
		t.Error("turn should be fresh before the threshold")
	}
	if !turn.Stale(now.Add(2*time.Minute), time.Minute) {
		t.Error("turn should be stale past the threshold")
	}
}

func TestTranscriptResolveIsIdempotent(t *testing.T) {
	tr := &Transcript{SessionID: "main"}
	tr.Append(TranscriptEntry{ID: "u1", Role: "user", Text: "hi"})
	tr.Append(TranscriptEntry{ID: "ph1", Role: "assistant", Pending: true})

	if !tr.Resolve("ph1", "hello there", false) {
		t.Fatal("first resolve should succeed")
	}
	if tr.Resolve("ph1", "hello again", false) {
		t.Fatal("second resolve must be a no-op")
	}
	if tr.PendingEntry() != nil {
		t.Fatal("no pending entry should remain")
	}
	if got := tr.Entries[1].Text; got != "hello there" {
		t.Fatalf("reply = %q, want the first delivery", got)
	}
}

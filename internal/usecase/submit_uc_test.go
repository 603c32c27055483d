package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/infra/memory"
	"tutor-chat-client/internal/infra/logging"
)

func testTurnConfig() config.TurnConfig {
	return config.TurnConfig{
		PollInterval:     10 * time.Millisecond,
		Staleness:        time.Minute,
		OrphanRetries:    3,
		TransientRetries: 5,
		LockTimeout:      100 * time.Millisecond,
		LockTTL:          time.Second,
		HistoryWindow:    2 * time.Minute,
	}
}

func newSubmitFixture(t *testing.T) (*submitUC, *memory.Store, *fakeJobs, ReconcileUseCase) {
	t.Helper()
	log := logging.New(config.LogConfig{Level: "error", Format: "console"}, true)
	store := memory.NewStore()
	jobs := newFakeJobs()
	rec := NewReconcileUseCase(2*time.Minute, nil, log)
	uc := NewSubmitUseCase(store, freeLocker{}, jobs, rec, testTurnConfig(), "S001", "student", log)
	return uc, store, jobs, rec
}

func TestSubmitRejectsEmptyAndMentionOnlyInput(t *testing.T) {
	ctx := context.Background()
	uc, _, jobs, _ := newSubmitFixture(t)

	_, err := uc.Submit(ctx, "main", "   ", "")
	if !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("blank input: got %v, want ErrEmptyMessage", err)
	}
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("blank input: %v must match ErrInvalidArgument", err)
	}
	_, err = uc.Submit(ctx, "main", "@writing-coach @grader", "")
	if !errors.Is(err, domain.ErrMentionOnly) {
		t.Fatalf("mention-only input: got %v, want ErrMentionOnly", err)
	}
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("mention-only input: %v must match ErrInvalidArgument", err)
	}
	if _, err := uc.Submit(ctx, "main", "@writing-coach fix this", ""); err != nil {
		t.Fatalf("mention plus text must be accepted, got %v", err)
	}
	if jobs.starts() != 1 {
		t.Fatalf("start calls = %d, want 1 (none for rejected input)", jobs.starts())
	}
}

func TestSubmitPersistsRecordWithJobID(t *testing.T) {
	ctx := context.Background()
	uc, store, _, _ := newSubmitFixture(t)

	turn, err := uc.Submit(ctx, "main", "explain recursion", "")
	if err != nil {
		t.Fatal(err)
	}
	if turn.JobID != "J1" || turn.RequestID == "" || turn.PlaceholderID == "" {
		t.Fatalf("turn not fully populated: %+v", turn)
	}

	persisted, err := store.Get(ctx, "S001", "main")
	if err != nil {
		t.Fatal(err)
	}
	if persisted == nil || persisted.JobID != "J1" || persisted.UserText != "explain recursion" {
		t.Fatalf("persisted record = %+v", persisted)
	}
}

func TestSubmitRejectsDuplicateWhileTurnInFlight(t *testing.T) {
	ctx := context.Background()
	uc, _, jobs, _ := newSubmitFixture(t)

	if _, err := uc.Submit(ctx, "main", "first", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Submit(ctx, "main", "second", ""); !errors.Is(err, domain.ErrTurnInFlight) {
		t.Fatalf("duplicate submit: got %v, want ErrTurnInFlight", err)
	}
	if jobs.starts() != 1 {
		t.Fatalf("start calls = %d, want 1", jobs.starts())
	}

	// A different session is unaffected.
	if _, err := uc.Submit(ctx, "other", "hello", ""); err != nil {
		t.Fatalf("other session must not be blocked, got %v", err)
	}
}

func TestSubmitClearsStaleOrphanAndProceeds(t *testing.T) {
	ctx := context.Background()
	uc, store, _, _ := newSubmitFixture(t)

	turn, err := uc.Submit(ctx, "main", "first", "")
	if err != nil {
		t.Fatal(err)
	}
	// Age the record past staleness.
	turn.CreatedAt = time.Now().Add(-2 * time.Minute)
	if err := store.Put(ctx, "S001", turn); err != nil {
		t.Fatal(err)
	}

	fresh, err := uc.Submit(ctx, "main", "second", "")
	if err != nil {
		t.Fatalf("stale orphan must not block a new turn, got %v", err)
	}
	persisted, _ := store.Get(ctx, "S001", "main")
	if persisted == nil || persisted.RequestID != fresh.RequestID {
		t.Fatalf("new record must supersede the stale one, got %+v", persisted)
	}
}

func TestSubmitAdmissionTimeoutIsLocalOnly(t *testing.T) {
	ctx := context.Background()
	log := logging.New(config.LogConfig{Level: "error", Format: "console"}, true)
	store := memory.NewStore()
	jobs := newFakeJobs()
	rec := NewReconcileUseCase(2*time.Minute, nil, log)
	uc := NewSubmitUseCase(store, stuckLocker{}, jobs, rec, testTurnConfig(), "S001", "student", log)

	_, err := uc.Submit(ctx, "main", "hello", "")
	if !errors.Is(err, domain.ErrAdmissionTimeout) {
		t.Fatalf("got %v, want ErrAdmissionTimeout", err)
	}
	if jobs.starts() != 0 {
		t.Fatal("no network call may be made when admission fails")
	}
	if rec, _ := store.Get(ctx, "S001", "main"); rec != nil {
		t.Fatalf("no record may be created when admission fails, got %+v", rec)
	}
}

func TestSubmitStartFailureClearsPartialState(t *testing.T) {
	ctx := context.Background()
	uc, store, jobs, rec := newSubmitFixture(t)
	jobs.startErr = errors.New("connection refused")

	_, err := uc.Submit(ctx, "main", "hello", "")
	if !errors.Is(err, domain.ErrStartFailed) {
		t.Fatalf("got %v, want ErrStartFailed", err)
	}
	if persisted, _ := store.Get(ctx, "S001", "main"); persisted != nil {
		t.Fatalf("record must be cleared on start failure, got %+v", persisted)
	}

	// Recoverable: the next submit goes through.
	jobs.startErr = nil
	if _, err := uc.Submit(ctx, "main", "hello again", ""); err != nil {
		t.Fatalf("submission must recover after a start failure, got %v", err)
	}
	_ = rec
}

func TestSubmitWithoutServerJobIDUsesProvisionalID(t *testing.T) {
	ctx := context.Background()
	uc, store, jobs, _ := newSubmitFixture(t)
	jobs.startResp.JobID = ""

	turn, err := uc.Submit(ctx, "main", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if turn.JobID != "pending:"+turn.RequestID {
		t.Fatalf("JobID = %q, want provisional id derived from request id", turn.JobID)
	}
	if persisted, _ := store.Get(ctx, "S001", "main"); persisted == nil || persisted.JobID != turn.JobID {
		t.Fatalf("provisional id must be persisted, got %+v", persisted)
	}
}

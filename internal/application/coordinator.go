// Package application composes the coordinator from its parts: store,
// admission lock, job service, submission, polling, and reconciliation.
// One Coordinator corresponds to one open client instance for a user.
package application

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/adapter"
	"tutor-chat-client/internal/domain/ports/repository"
	"tutor-chat-client/internal/infra/lease"
	"tutor-chat-client/internal/infra/worker"
	"tutor-chat-client/internal/usecase"
)

type Coordinator struct {
	cfg    *config.Config
	store  repository.PendingTurnStore
	submit usecase.SubmitUseCase
	rec    usecase.ReconcileUseCase
	jobs   adapter.JobService
	poller *worker.TurnPoller
	log    *zerolog.Logger

	// busy spans a Submit from acceptance to lock release, the analog of
	// the disabled composer. It serializes submissions within this
	// instance independently of the cross-instance lock.
	busy   atomic.Bool
	closed atomic.Bool
	cancel context.CancelFunc
}

// NewCoordinator wires a client instance. locker may be nil; PickLocker
// then probes the store for a usable fallback surface.
func NewCoordinator(
	cfg *config.Config,
	store repository.PendingTurnStore,
	locker repository.Locker,
	jobs adapter.JobService,
	sink adapter.TranscriptSink,
	log *zerolog.Logger,
) *Coordinator {
	locker = PickLocker(store, locker)
	rec := usecase.NewReconcileUseCase(cfg.Turn.HistoryWindow, sink, log)
	submit := usecase.NewSubmitUseCase(store, locker, jobs, rec, cfg.Turn, cfg.UserID, cfg.RoleField, log)
	poller := worker.NewTurnPoller(store, jobs, rec, cfg.Turn, cfg.UserID, log)
	return &Coordinator{
		cfg:    cfg,
		store:  store,
		submit: submit,
		rec:    rec,
		jobs:   jobs,
		poller: poller,
		log:    log,
	}
}

// PickLocker selects the admission lock implementation by capability:
// the native primitive when the caller provides one, otherwise a lease
// over the store's raw KV surface.
func PickLocker(store repository.PendingTurnStore, native repository.Locker) repository.Locker {
	if native != nil {
		return native
	}
	if kv, ok := store.(repository.KV); ok {
		return lease.NewLocker(kv)
	}
	// Stores in this repo all expose KV; reaching here is a wiring bug.
	panic("no admission lock available for store")
}

// Start resumes persisted pending turns and begins polling.
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if err := c.poller.Resume(runCtx); err != nil {
		cancel()
		return err
	}
	go c.poller.Run(runCtx)
	c.poller.Wake() // resumed turns get an immediate pass
	return nil
}

// Submit validates and starts a new turn in the given session. While one
// submission is in flight, further submissions from this instance are
// rejected locally, matching the disabled-composer contract.
func (c *Coordinator) Submit(ctx context.Context, sessionID, text, skill string) (*model.PendingTurn, error) {
	if c.closed.Load() {
		return nil, domain.ErrClosed
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrTurnInFlight
	}
	defer c.busy.Store(false)

	turn, err := c.submit.Submit(ctx, sessionID, text, skill)
	if err != nil {
		return nil, err
	}
	c.poller.Attach(turn)
	c.poller.Wake()
	return turn, nil
}

// EnterSession prepares the transcript view for a session: re-shows the
// single in-progress placeholder if a pending record exists, and kicks off
// an asynchronous history fetch whose results merge without duplicating
// live bubbles.
func (c *Coordinator) EnterSession(ctx context.Context, sessionID string) {
	if turn, err := c.store.Get(ctx, c.cfg.UserID, sessionID); err == nil && turn != nil {
		c.poller.Attach(turn)
		c.poller.Wake()
	}
	go func() {
		msgs, err := c.jobs.FetchHistory(ctx, sessionID)
		if err != nil {
			c.log.Debug().Err(err).Str("session_id", sessionID).Msg("history fetch failed")
			return
		}
		c.rec.MergeHistory(sessionID, msgs)
	}()
}

// OnVisible signals that the instance regained visibility; the poller
// takes an immediate pass instead of waiting out the interval.
func (c *Coordinator) OnVisible() {
	c.poller.Wake()
}

// Transcript returns a snapshot of the session's transcript.
func (c *Coordinator) Transcript(sessionID string) model.Transcript {
	return c.rec.Transcript(sessionID)
}

// Pending reports whether the session has a live pending turn record.
func (c *Coordinator) Pending(ctx context.Context, sessionID string) bool {
	turn, err := c.store.Get(ctx, c.cfg.UserID, sessionID)
	return err == nil && turn != nil
}

// Close stops the poller and rejects further submissions. Idempotent.
func (c *Coordinator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
		<-c.poller.Done()
	}
}

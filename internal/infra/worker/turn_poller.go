package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/adapter"
	"tutor-chat-client/internal/domain/ports/repository"
	"tutor-chat-client/internal/infra/logging"
	"tutor-chat-client/internal/infra/metrics"
	"tutor-chat-client/internal/usecase"
)

// TurnPoller drives every tracked pending turn to a terminal state. It
// polls on a fixed interval, takes an immediate out-of-band pass on Wake
// (tab-visibility restore analog), and is resumable from cold start via
// Resume, which re-attaches to persisted records without re-submitting.
type TurnPoller struct {
	store  repository.PendingTurnStore
	jobs   adapter.JobService
	rec    usecase.ReconcileUseCase
	cfg    config.TurnConfig
	userID string
	now    func() time.Time
	log    *zerolog.Logger

	mu      sync.Mutex
	tracked map[string]*trackedTurn // by session id

	wake chan struct{}
	done chan struct{}
}

// trackedTurn carries the per-turn retry accounting. notFound guards a
// status read racing the job's own creation; transient guards flaky
// transport. Both reset on any successful poll.
type trackedTurn struct {
	turn      *model.PendingTurn
	notFound  int
	transient int
}

func NewTurnPoller(
	store repository.PendingTurnStore,
	jobs adapter.JobService,
	rec usecase.ReconcileUseCase,
	cfg config.TurnConfig,
	userID string,
	log *zerolog.Logger,
) *TurnPoller {
	return &TurnPoller{
		store:   store,
		jobs:    jobs,
		rec:     rec,
		cfg:     cfg,
		userID:  userID,
		now:     time.Now,
		log:     log,
		tracked: make(map[string]*trackedTurn),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Attach starts tracking a turn and shows its placeholder.
func (p *TurnPoller) Attach(turn *model.PendingTurn) {
	p.mu.Lock()
	p.tracked[turn.SessionID] = &trackedTurn{turn: turn}
	p.mu.Unlock()
	p.rec.EnsurePlaceholder(turn)
}

// Resume re-attaches every persisted pending record for the user. Called
// once on startup before Run.
func (p *TurnPoller) Resume(ctx context.Context) error {
	turns, err := p.store.List(ctx, p.userID)
	if err != nil {
		return err
	}
	for _, t := range turns {
		p.log.Info().Str("session_id", t.SessionID).Str("job_id", t.JobID).Msg("resuming pending turn")
		p.Attach(t)
	}
	return nil
}

// Wake requests an immediate poll pass, out of band with the interval.
func (p *TurnPoller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. This should be run in a goroutine.
func (p *TurnPoller) Run(ctx context.Context) {
	defer close(p.done)
	p.log.Info().Dur("interval", p.cfg.PollInterval).Msg("turn poller started")
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("turn poller stopping")
			return
		case <-ticker.C:
			p.PollAll(ctx)
		case <-p.wake:
			p.PollAll(ctx)
		}
	}
}

// Done is closed when Run has exited.
func (p *TurnPoller) Done() <-chan struct{} { return p.done }

// Tracking reports whether the session still has a tracked turn.
func (p *TurnPoller) Tracking(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tracked[sessionID]
	return ok
}

// PollAll polls every tracked turn once.
func (p *TurnPoller) PollAll(ctx context.Context) {
	p.mu.Lock()
	snapshot := make([]*trackedTurn, 0, len(p.tracked))
	for _, t := range p.tracked {
		snapshot = append(snapshot, t)
	}
	p.mu.Unlock()

	for _, t := range snapshot {
		p.pollOne(ctx, t)
	}
}

func (p *TurnPoller) pollOne(ctx context.Context, t *trackedTurn) {
	turn := t.turn
	ctx = logging.WithSessID(logging.WithJobID(ctx, turn.JobID), turn.SessionID)
	log := logging.With(ctx, p.log)

	if strings.HasPrefix(turn.JobID, "pending:") {
		// Start response never carried a job id. Nothing to poll; give
		// the record the same staleness grace as an unknown job.
		if turn.Stale(p.now(), p.cfg.Staleness) {
			p.orphan(ctx, turn)
		}
		return
	}

	start := time.Now()
	resp, err := p.jobs.JobStatus(ctx, turn.JobID)
	metrics.ObservePollLatency(int(time.Since(start) / time.Millisecond))

	switch {
	case err == nil:
		metrics.IncPoll("ok")
		t.notFound, t.transient = 0, 0
		p.apply(ctx, turn, resp)
	case errors.Is(err, domain.ErrJobNotFound):
		metrics.IncPoll("not_found")
		t.notFound++
		// A fresh record may be racing the job's creation; retry a few
		// times before declaring the orphan.
		if turn.Stale(p.now(), p.cfg.Staleness) || t.notFound > p.cfg.OrphanRetries {
			p.orphan(ctx, turn)
		}
	case isTransient(err):
		metrics.IncPoll("transient")
		t.transient++
		if t.transient > p.cfg.TransientRetries {
			log.Error().Err(err).Msg("poll retry budget exhausted")
			p.finish(ctx, turn, "failed")
			p.rec.FailTurn(turn, "Lost contact with the assistant. Please try again.")
		} else {
			log.Debug().Err(err).Int("retries", t.transient).Msg("transient poll failure")
		}
	default:
		metrics.IncPoll("error")
		log.Error().Err(err).Msg("unexpected poll failure")
		t.transient++
		if t.transient > p.cfg.TransientRetries {
			p.finish(ctx, turn, "failed")
			p.rec.FailTurn(turn, "Lost contact with the assistant. Please try again.")
		}
	}
}

func (p *TurnPoller) apply(ctx context.Context, turn *model.PendingTurn, resp *adapter.JobStatusResponse) {
	status := resp.Status.Normalize()
	if !status.IsTerminal() {
		p.rec.UpdateQueue(turn, resp.QueuePosition, resp.QueueSize)
		return
	}

	switch status {
	case model.TurnStatusDone:
		p.finish(ctx, turn, "done")
		p.rec.CompleteTurn(turn, resp.Reply)
	case model.TurnStatusCancelled:
		p.finish(ctx, turn, "cancelled")
		p.rec.FailTurn(turn, detailOr(resp, "The turn was cancelled."))
	default: // failed, plus anything unrecognized folded into failed
		p.finish(ctx, turn, "failed")
		p.rec.FailTurn(turn, detailOr(resp, ""))
	}
	logging.With(ctx, p.log).Info().Str("status", string(status)).Msg("turn finished")
}

func (p *TurnPoller) orphan(ctx context.Context, turn *model.PendingTurn) {
	logging.With(ctx, p.log).Warn().Msg("pending turn orphaned")
	p.finish(ctx, turn, "orphaned")
	p.rec.FailTurn(turn, "The assistant did not answer. Please try again.")
}

// finish clears the persisted record and stops tracking. Runs before the
// reconciler hand-off so a crash between the two leaves no dangling record.
func (p *TurnPoller) finish(ctx context.Context, turn *model.PendingTurn, outcome string) {
	_ = p.store.Clear(ctx, p.userID, turn.SessionID)
	p.mu.Lock()
	delete(p.tracked, turn.SessionID)
	p.mu.Unlock()
	metrics.IncTurnCompleted(outcome)
}

func isTransient(err error) bool {
	var te *adapter.TransientError
	return errors.As(err, &te)
}

func detailOr(resp *adapter.JobStatusResponse, fallback string) string {
	if resp.ErrorDetail != "" {
		return resp.ErrorDetail
	}
	if resp.Error != "" {
		return resp.Error
	}
	return fallback
}

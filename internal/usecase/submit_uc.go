// File: internal/usecase/submit_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/adapter"
	"tutor-chat-client/internal/domain/ports/repository"
	"tutor-chat-client/internal/infra/logging"
	"tutor-chat-client/internal/infra/metrics"
)

// Compile-time check
var _ SubmitUseCase = (*submitUC)(nil)

// SubmitUseCase admits and starts a new chat turn. Exactly one start call
// succeeds system-wide per user per instant: the admission lock wraps the
// whole critical section, and the pending record is persisted before the
// lock is released.
type SubmitUseCase interface {
	Submit(ctx context.Context, sessionID, text, skill string) (*model.PendingTurn, error)
}

type submitUC struct {
	store  repository.PendingTurnStore
	locker repository.Locker
	jobs   adapter.JobService
	rec    ReconcileUseCase
	cfg    config.TurnConfig
	userID string
	role   string
	now    func() time.Time
	log    *zerolog.Logger
}

func NewSubmitUseCase(
	store repository.PendingTurnStore,
	locker repository.Locker,
	jobs adapter.JobService,
	rec ReconcileUseCase,
	cfg config.TurnConfig,
	userID, role string,
	log *zerolog.Logger,
) *submitUC {
	return &submitUC{
		store:  store,
		locker: locker,
		jobs:   jobs,
		rec:    rec,
		cfg:    cfg,
		userID: userID,
		role:   role,
		now:    time.Now,
		log:    log,
	}
}

func lockKey(userID string) string { return "turn_lock:" + userID }

func (s *submitUC) Submit(ctx context.Context, sessionID, text, skill string) (*model.PendingTurn, error) {
	defer logging.TraceDuration(s.log, "SubmitUC.Submit")()
	ctx = logging.WithUserID(logging.WithSessID(ctx, sessionID), s.userID)
	log := logging.With(ctx, s.log)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if mentionOnly(text) {
		return nil, domain.ErrMentionOnly
	}

	// Cheap duplicate check before paying for the lock. A stale orphan
	// does not count: clear it and let the new turn supersede.
	if existing, err := s.store.Get(ctx, s.userID, sessionID); err == nil && existing != nil {
		if !existing.Stale(s.now(), s.cfg.Staleness) {
			metrics.IncTurnSubmitted("rejected")
			return nil, domain.ErrTurnInFlight
		}
		log.Warn().Str("job_id", existing.JobID).Msg("clearing stale pending turn")
		_ = s.store.Clear(ctx, s.userID, sessionID)
	}

	token, err := s.locker.TryLock(ctx, lockKey(s.userID), s.cfg.LockTTL, s.cfg.LockTimeout)
	if err != nil {
		metrics.IncTurnSubmitted("admission_timeout")
		return nil, fmt.Errorf("admission: %w", err)
	}
	defer func() {
		if uerr := s.locker.Unlock(context.WithoutCancel(ctx), lockKey(s.userID), token); uerr != nil {
			log.Warn().Err(uerr).Msg("failed to release submission lock")
		}
	}()

	// Re-check under the lock: another instance may have won the race
	// between our duplicate check and acquisition.
	if existing, err := s.store.Get(ctx, s.userID, sessionID); err == nil && existing != nil &&
		!existing.Stale(s.now(), s.cfg.Staleness) {
		metrics.IncTurnSubmitted("rejected")
		return nil, domain.ErrTurnInFlight
	}

	requestID := uuid.NewString()
	placeholderID := model.NewEntryID()
	turn := model.NewPendingTurn(sessionID, requestID, placeholderID, text)

	s.rec.BeginTurn(sessionID, placeholderID, text)

	messages := s.rec.RecentMessages(sessionID, 15)
	resp, err := s.jobs.StartTurn(ctx, adapter.StartTurnRequest{
		RequestID: requestID,
		SessionID: sessionID,
		UserID:    s.userID,
		Role:      s.role,
		Messages:  messages,
		Skill:     skill,
	})
	if err != nil {
		// Recoverable: no record survives, composer re-enables.
		s.rec.FailTurn(turn, "Could not reach the assistant. Please try again.")
		_ = s.store.Clear(ctx, s.userID, sessionID)
		metrics.IncTurnSubmitted("start_failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrStartFailed, err)
	}

	turn.JobID = resp.JobID
	if turn.JobID == "" {
		// The server accepted the turn but has not assigned an id yet.
		// Persist under a provisional id; the poller treats it like an
		// unknown job until staleness resolves it.
		turn.JobID = "pending:" + requestID
	}
	// Persisted before the lock releases, so the next acquirer sees it.
	_ = s.store.Put(ctx, s.userID, turn)

	s.rec.UpdateQueue(turn, resp.QueuePosition, resp.QueueSize)
	metrics.IncTurnSubmitted("accepted")
	log.Info().Str("job_id", turn.JobID).Str("request_id", requestID).Msg("turn started")
	return turn, nil
}

// mentionOnly reports whether the text consists solely of skill or agent
// invocation tokens ("@writing-coach"), with nothing for the model to act on.
func mentionOnly(text string) bool {
	for _, tok := range strings.Fields(text) {
		if !strings.HasPrefix(tok, "@") || len(tok) == 1 {
			return false
		}
	}
	return true
}

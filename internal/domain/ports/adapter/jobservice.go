package adapter

import (
	"context"
	"fmt"
	"time"

	"tutor-chat-client/internal/domain/model"
)

// Message is one entry of the conversation context sent with a start call.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StartTurnRequest is the body of the start call. RequestID is the
// client-generated idempotency token; the server deduplicates on it.
type StartTurnRequest struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Messages  []Message `json:"messages"`
	Skill     string    `json:"skill,omitempty"`
}

// StartTurnResponse carries the server-assigned job id. Queue fields are
// optional depth hints for the pending placeholder.
type StartTurnResponse struct {
	JobID         string           `json:"job_id"`
	Status        model.TurnStatus `json:"status"`
	QueuePosition int              `json:"lane_queue_position,omitempty"`
	QueueSize     int              `json:"lane_queue_size,omitempty"`
}

// JobStatusResponse is the polled view of a job. Reply is set only on
// done; Error/ErrorDetail only on failure.
type JobStatusResponse struct {
	JobID         string           `json:"job_id"`
	Status        model.TurnStatus `json:"status"`
	Reply         string           `json:"reply,omitempty"`
	Error         string           `json:"error,omitempty"`
	ErrorDetail   string           `json:"error_detail,omitempty"`
	QueuePosition int              `json:"lane_queue_position,omitempty"`
	QueueSize     int              `json:"lane_queue_size,omitempty"`
}

// HistoryMessage is one message of the asynchronously fetched session
// history. Timestamp may be zero when the backend has not recorded one.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// JobService is the remote job-processing collaborator. An unknown job_id
// on JobStatus surfaces as domain.ErrJobNotFound; retryable transport or
// server failures surface as *TransientError.
type JobService interface {
	StartTurn(ctx context.Context, req StartTurnRequest) (*StartTurnResponse, error)
	JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error)
	FetchHistory(ctx context.Context, sessionID string) ([]HistoryMessage, error)
}

// TransientError marks a failure worth retrying (5xx, timeouts, connection
// resets). The poller spends its retry budget on these before failing the
// turn locally.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

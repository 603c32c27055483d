// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/ports/adapter"
)

// fakeJobs is a scriptable in-memory job service used by unit tests.
type fakeJobs struct {
	mu         sync.Mutex
	startCalls int
	startErr   error
	startResp  adapter.StartTurnResponse
	statusBy   map[string]*adapter.JobStatusResponse
	statusErr  error
	history    map[string][]adapter.HistoryMessage
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		startResp: adapter.StartTurnResponse{JobID: "J1", Status: "queued"},
		statusBy:  make(map[string]*adapter.JobStatusResponse),
		history:   make(map[string][]adapter.HistoryMessage),
	}
}

func (f *fakeJobs) StartTurn(ctx context.Context, req adapter.StartTurnRequest) (*adapter.StartTurnResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	resp := f.startResp
	return &resp, nil
}

func (f *fakeJobs) JobStatus(ctx context.Context, jobID string) (*adapter.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	resp, ok := f.statusBy[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *resp
	return &cp, nil
}

func (f *fakeJobs) FetchHistory(ctx context.Context, sessionID string) ([]adapter.HistoryMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[sessionID], nil
}

func (f *fakeJobs) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

// freeLocker always grants immediately.
type freeLocker struct{}

func (freeLocker) TryLock(ctx context.Context, key string, ttl, timeout time.Duration) (string, error) {
	return "tok", nil
}
func (freeLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// stuckLocker never grants; every acquisition times out.
type stuckLocker struct{}

func (stuckLocker) TryLock(ctx context.Context, key string, ttl, timeout time.Duration) (string, error) {
	return "", domain.ErrAdmissionTimeout
}
func (stuckLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// countingSink records how many updates each session received.
type countingSink struct {
	mu      sync.Mutex
	updates map[string]int
}

func newCountingSink() *countingSink { return &countingSink{updates: make(map[string]int)} }

func (s *countingSink) TranscriptUpdated(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[sessionID]++
}

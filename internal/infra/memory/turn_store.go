// Package memory provides an in-process implementation of the shared
// pending-turn store. It backs dev mode and multi-instance tests: several
// coordinators pointed at one Store behave like several clients sharing
// the same persisted state.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/repository"
)

var (
	_ repository.PendingTurnStore = (*Store)(nil)
	_ repository.KV               = (*Store)(nil)
)

// Store keeps records as JSON strings, same as the redis store, so decode
// tolerance is exercised on this path too. Write failures injected via
// SetWriteErr are swallowed: the caller's turn proceeds unpersisted.
type Store struct {
	mu       sync.Mutex
	turns    map[string]map[string]string // userID -> sessionID -> payload
	raw      map[string]string
	writeErr error
}

func NewStore() *Store {
	return &Store{
		turns: make(map[string]map[string]string),
		raw:   make(map[string]string),
	}
}

// SetWriteErr makes subsequent writes fail silently, simulating a storage
// layer that throws on write (quota, permissions).
func (s *Store) SetWriteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// InjectRecord plants a raw payload for a (user, session) key, bypassing
// serialization. Used to simulate records written by other client versions.
func (s *Store) InjectRecord(userID, sessionID, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turns[userID] == nil {
		s.turns[userID] = make(map[string]string)
	}
	s.turns[userID][sessionID] = payload
}

func (s *Store) Get(ctx context.Context, userID, sessionID string) (*model.PendingTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.turns[userID][sessionID]
	if !ok {
		return nil, nil
	}
	return decode(sessionID, data), nil
}

func (s *Store) Put(ctx context.Context, userID string, turn *model.PendingTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil
	}
	if s.turns[userID] == nil {
		s.turns[userID] = make(map[string]string)
	}
	s.turns[userID][turn.SessionID] = string(data)
	return nil
}

func (s *Store) Clear(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil
	}
	delete(s.turns[userID], sessionID)
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]*model.PendingTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.PendingTurn
	for sessionID, data := range s.turns[userID] {
		if t := decode(sessionID, data); t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func decode(sessionID, data string) *model.PendingTurn {
	var t model.PendingTurn
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil
	}
	if t.SessionID == "" {
		t.SessionID = sessionID
	}
	return &t
}

func (s *Store) GetRaw(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.raw[key]
	return v, ok, nil
}

func (s *Store) PutRaw(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.raw[key] = value
	return nil
}

func (s *Store) DelRaw(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.raw, key)
	return nil
}

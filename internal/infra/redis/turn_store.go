package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"tutor-chat-client/internal/domain/model"
	"tutor-chat-client/internal/domain/ports/repository"
)

var (
	_ repository.PendingTurnStore = (*TurnStore)(nil)
	_ repository.KV               = (*TurnStore)(nil)
)

// TurnStore keeps pending-turn records in a per-user hash, one field per
// session. Writes that fail (connectivity, quota) are logged and dropped:
// the live turn must still finish even when persistence is unavailable.
// Corrupt payloads read as absent.
type TurnStore struct {
	client RedisClient
	log    *zerolog.Logger
}

func NewTurnStore(client RedisClient, log *zerolog.Logger) *TurnStore {
	return &TurnStore{client: client, log: log}
}

func (s *TurnStore) userKey(userID string) string {
	return fmt.Sprintf("pending_turns:%s", userID)
}

func (s *TurnStore) Get(ctx context.Context, userID, sessionID string) (*model.PendingTurn, error) {
	data, err := s.client.HGet(ctx, s.userKey(userID), sessionID)
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return decodeTurn(s.log, sessionID, data), nil
}

func (s *TurnStore) Put(ctx context.Context, userID string, turn *model.PendingTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.userKey(userID), turn.SessionID, data); err != nil {
		s.log.Warn().Err(err).Str("session_id", turn.SessionID).Msg("pending turn write dropped")
	}
	return nil
}

func (s *TurnStore) Clear(ctx context.Context, userID, sessionID string) error {
	if err := s.client.HDel(ctx, s.userKey(userID), sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("pending turn clear dropped")
	}
	return nil
}

func (s *TurnStore) List(ctx context.Context, userID string) ([]*model.PendingTurn, error) {
	all, err := s.client.HGetAll(ctx, s.userKey(userID))
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	turns := make([]*model.PendingTurn, 0, len(all))
	for sessionID, data := range all {
		if t := decodeTurn(s.log, sessionID, data); t != nil {
			turns = append(turns, t)
		}
	}
	return turns, nil
}

// decodeTurn treats unparseable payloads as absent. An older or newer
// client may have written the record; a record we cannot read is a record
// we cannot act on.
func decodeTurn(log *zerolog.Logger, sessionID, data string) *model.PendingTurn {
	var t model.PendingTurn
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		log.Warn().Str("session_id", sessionID).Msg("discarding corrupt pending turn record")
		return nil
	}
	if t.SessionID == "" {
		t.SessionID = sessionID
	}
	return &t
}

// Raw KV surface, shared with the lease locker fallback.

func (s *TurnStore) GetRaw(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *TurnStore) PutRaw(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0)
}

func (s *TurnStore) DelRaw(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}

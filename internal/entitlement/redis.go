package entitlement

import (
	"context"
	"encoding/json"
	"strings"
)

// Redis key namespaces. Records never expire; the latest write per
// user simply replaces the previous one.
const (
	entitlementKeyPrefix = "billing:entitlement:"
	tokenKeyPrefix       = "billing:token:"
)

// Load restores entitlement and token records from Redis into memory.
// It is a no-op without a configured client. Call once at startup,
// before the store is shared.
func (s *Store) Load(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	loaded := 0
	iter := s.rdb.Scan(ctx, 0, entitlementKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("skipping unreadable entitlement record")
			continue
		}
		var ent Entitlement
		if err := json.Unmarshal(data, &ent); err != nil || ent.UserID == "" {
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("skipping malformed entitlement record")
			continue
		}
		s.mu.Lock()
		s.entitlements[ent.UserID] = ent
		s.mu.Unlock()
		loaded++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	tokens := 0
	iter = s.rdb.Scan(ctx, 0, tokenKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		token := strings.TrimPrefix(iter.Val(), tokenKeyPrefix)
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var ref TokenRef
		if err := json.Unmarshal(data, &ref); err != nil || ref.UserID == "" {
			continue
		}
		s.mu.Lock()
		s.tokens[token] = ref
		s.mu.Unlock()
		tokens++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	s.logger.Info().Int("entitlements", loaded).Int("tokens", tokens).Msg("entitlement store loaded from redis")
	return nil
}

func (s *Store) persistEntitlement(ctx context.Context, ent Entitlement) {
	if s.rdb == nil {
		return
	}

	data, err := json.Marshal(ent)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", ent.UserID).Msg("marshal entitlement for persistence")
		return
	}
	if err := s.rdb.Set(ctx, entitlementKeyPrefix+ent.UserID, data, 0).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", ent.UserID).Msg("persist entitlement to redis")
	}
}

func (s *Store) persistToken(ctx context.Context, token string, ref TokenRef) {
	if s.rdb == nil {
		return
	}

	data, err := json.Marshal(ref)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal token ref for persistence")
		return
	}
	if err := s.rdb.Set(ctx, tokenKeyPrefix+token, data, 0).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("persist token ref to redis")
	}
}

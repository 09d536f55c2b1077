// Package activity records usage: an append-only per-user activity stream
// plus atomic counter increments on the user record. This replaces derived
// counter columns with an explicit raw-counter + log read model.
package activity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cellarium-cloud/cas-api/internal/domain"
)

// store is the consumer interface for activity operations (ISP).
type store interface {
	XAdd(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, val int64) error
}

// Store appends usage records and bumps per-user counters.
type Store struct {
	store  store
	prefix string
}

// New creates an activity store.
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, prefix: keyPrefix}
}

// LogUserActivity appends one activity record and increments the user's
// cumulative counters. Each HINCRBY is atomic, so concurrent requests from
// the same user cannot lose updates.
func (s *Store) LogUserActivity(ctx context.Context, rec domain.ActivityRecord) error {
	fields := map[string]string{
		"user_id":       strconv.FormatInt(rec.UserID, 10),
		"model_name":    rec.ModelName,
		"method":        rec.Method,
		"cell_count":    strconv.Itoa(rec.CellCount),
		"finished_time": strconv.FormatInt(rec.Finished, 10),
	}
	if err := s.store.XAdd(ctx, s.activityKey(rec.UserID), fields); err != nil {
		return fmt.Errorf("xadd activity user %d: %w", rec.UserID, err)
	}

	userKey := s.userKey(rec.UserID)
	if err := s.store.HIncrBy(ctx, userKey, "cells_processed", int64(rec.CellCount)); err != nil {
		return fmt.Errorf("incr cells_processed user %d: %w", rec.UserID, err)
	}
	if err := s.store.HIncrBy(ctx, userKey, "requests_processed", 1); err != nil {
		return fmt.Errorf("incr requests_processed user %d: %w", rec.UserID, err)
	}
	return nil
}

func (s *Store) activityKey(userID int64) string {
	return fmt.Sprintf("%sactivity:%d", s.prefix, userID)
}

// userKey must match the registry's user key layout.
func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("%suser:%d", s.prefix, userID)
}

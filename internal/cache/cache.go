// Package cache provides the best-effort key/value store used for restaurant
// display data and match display-name associations.
//
// Results are explicit: Get returns ErrMiss for an absent or expired key and
// any other error for a store failure. Callers decide what a miss or a
// failure means; nothing in this package logs or swallows errors.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache with per-entry TTL. A non-positive TTL means
// the entry does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON loads key and decodes it into dst. A value that no longer decodes
// is reported as ErrMiss so callers repopulate it.
func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrMiss
	}
	return nil
}

// SetJSON encodes val and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Match model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a match is not found, functions return ErrNotFound.
//   - Status updates are compare-and-swap on the current status; a lost race
//     yields ErrStaleStatus.
//   - Unique violations on ux_matches_pair_slot are returned raw; the service
//     layer maps them to a duplicate-request error.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// ErrStaleStatus is returned by compare-and-swap status updates when the row
// no longer has the expected status.
var ErrStaleStatus = errors.New("status changed concurrently")

// CreateMatch inserts m, filling the pair key and CreatedAt when unset.
func CreateMatch(ctx context.Context, db *gorm.DB, m *domain.Match) error {
	m.PairLow, m.PairHigh = min(m.UserA, m.UserB), max(m.UserA, m.UserB)
	m.ProposedAt = m.ProposedAt.UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// GetMatch fetches a match by id, or ErrNotFound.
func GetMatch(ctx context.Context, db *gorm.DB, id int64) (*domain.Match, error) {
	var m domain.Match
	if err := db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMatch returns the non-declined match for the unordered pair
// {a, b} at instant at, or ErrNotFound.
func FindActiveMatch(ctx context.Context, db *gorm.DB, a, b int64, at time.Time) (*domain.Match, error) {
	var m domain.Match
	err := db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ? AND proposed_at = ? AND status <> ?",
			min(a, b), max(a, b), at.UTC(), domain.MatchDeclined).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMatchStatus moves match id from status from to status to. When
// respondedAt is non-nil it is stored as well.
func UpdateMatchStatus(ctx context.Context, db *gorm.DB, id int64, from, to domain.MatchStatus, respondedAt *time.Time) error {
	updates := map[string]any{"status": to}
	if respondedAt != nil {
		updates["responded_at"] = respondedAt.UTC()
	}
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ListMatchesForUser returns every match userID is a party to, newest first.
func ListMatchesForUser(ctx context.Context, db *gorm.DB, userID int64) ([]domain.Match, error) {
	var out []domain.Match
	err := db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// ExpirePendingMatches marks PENDING matches created before cutoff as
// EXPIRED and returns how many rows changed.
func ExpirePendingMatches(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("status = ? AND created_at < ?", domain.MatchPending, cutoff.UTC()).
		Update("status", domain.MatchExpired)
	return res.RowsAffected, res.Error
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the notification ledger that makes
// booking notifications exactly-once per (booking, user, event).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// ErrDuplicate indicates that a notification has already been recorded for
// the given (booking_id, user_id, event) tuple.
var ErrDuplicate = errors.New("duplicate")

// RecordNotification claims the right to notify userID about event on
// bookingID. It returns ErrDuplicate when the claim already exists, in which
// case the caller must not send again.
func RecordNotification(ctx context.Context, db *gorm.DB, bookingID, userID int64, event string) (*domain.NotificationLog, error) {
	rec := &domain.NotificationLog{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		UserID:    userID,
		Event:     event,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// CountNotifications returns how many notifications were recorded for
// bookingID and event.
func CountNotifications(ctx context.Context, db *gorm.DB, bookingID int64, event string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.NotificationLog{}).
		Where("booking_id = ? AND event = ?", bookingID, event).
		Count(&n).Error
	return n, err
}

// IsUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

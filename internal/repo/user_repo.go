// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read-only identity queries the
// compatibility engine and match lifecycle depend on.
//
// Users, profiles, preferences and follow sets are owned by the identity
// subsystem; nothing here writes them.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a user with its profile and preferences preloaded.
// Returns ErrNotFound when absent.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Profile").
		Preload("Preferences").
		First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListCandidateUsers returns active users other than excludeID that have a
// profile, ordered by id, with profile and preferences preloaded.
func ListCandidateUsers(ctx context.Context, db *gorm.DB, excludeID int64) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
		Where("users.id <> ? AND users.is_active = ?", excludeID, true).
		Preload("Profile").
		Preload("Preferences").
		Order("users.id asc").
		Find(&out).Error
	return out, err
}

// FollowedRestaurants returns the restaurants each of userIDs follows.
func FollowedRestaurants(ctx context.Context, db *gorm.DB, userIDs []int64) (map[int64][]domain.RestaurantRef, error) {
	out := make(map[int64][]domain.RestaurantRef, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []domain.RestaurantFollow
	err := db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("user_id asc").
		Order("restaurant_ref asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r.RestaurantRef)
	}
	return out, nil
}

// FollowedUsers returns the ids userID follows.
func FollowedUsers(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.UserFollow{}).
		Where("follower_id = ?", userID).
		Pluck("followed_id", &ids).Error
	return ids, err
}

// ActiveTimeSlots returns each user's active free-time slot starts.
func ActiveTimeSlots(ctx context.Context, db *gorm.DB, userIDs []int64) (map[int64][]time.Time, error) {
	out := make(map[int64][]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []domain.TimePreference
	err := db.WithContext(ctx).
		Where("user_id IN ? AND active = ?", userIDs, true).
		Order("user_id asc").
		Order("slot_start asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r.SlotStart.UTC())
	}
	return out, nil
}

// UserExists reports whether a user row exists, regardless of state.
func UserExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind restaurant
// analytics and the persisted daily snapshots. Snapshots are derived data:
// an upsert always overwrites the previous value for the same key.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/table-for-two/internal/domain"
)

// RestaurantsWithBookings returns the distinct restaurants that had at least
// one booking created in [from, to).
func RestaurantsWithBookings(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.RestaurantRef, error) {
	var refs []domain.RestaurantRef
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Distinct("restaurant_ref").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("restaurant_ref asc").
		Pluck("restaurant_ref", &refs).Error
	return refs, err
}

// UpsertSnapshot writes s, replacing the counters of an existing snapshot for
// the same (restaurant_ref, day).
func UpsertSnapshot(ctx context.Context, db *gorm.DB, s *domain.AnalyticsSnapshot) error {
	s.Day = s.Day.UTC()
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "restaurant_ref"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total", "confirmed", "completed", "cancelled", "average_rating", "updated_at",
			}),
		}).
		Create(s).Error
}

// ListSnapshots returns the snapshots of ref with day in [from, to), oldest
// first.
func ListSnapshots(ctx context.Context, db *gorm.DB, ref domain.RestaurantRef, from, to time.Time) ([]domain.AnalyticsSnapshot, error) {
	var out []domain.AnalyticsSnapshot
	err := db.WithContext(ctx).
		Where("restaurant_ref = ? AND day >= ? AND day < ?", ref, from.UTC(), to.UTC()).
		Order("day asc").
		Find(&out).Error
	return out, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Booking model.
//
// Functions:
//
//   - CreateBooking(ctx, db, b) -> error
//     Inserts a booking. A second booking for the same match violates
//     ux_booking_match and is returned as a raw DB error.
//
//   - GetBooking / GetBookingForRestaurant / GetBookingByMatch -> *domain.Booking, error
//     Single-row lookups returning ErrNotFound when absent.
//
//   - UpdateBookingStatus(ctx, db, id, from, to) -> error
//     Compare-and-swap on the current status; ErrStaleStatus on a lost race.
//
//   - ListBookingsCreated(ctx, db, ref, from, to) -> []domain.Booking, error
//     Bookings of a restaurant created in [from, to), oldest first.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
)

// CreateBooking inserts b. CreatedAt/UpdatedAt default to now (UTC) and
// BookingAt is normalised to UTC.
func CreateBooking(ctx context.Context, db *gorm.DB, b *domain.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	b.BookingAt = b.BookingAt.UTC()
	return db.WithContext(ctx).Create(b).Error
}

// GetBooking fetches a booking by id.
func GetBooking(ctx context.Context, db *gorm.DB, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForRestaurant fetches a booking by id, scoped to the owning
// restaurant. A booking of another restaurant is reported as ErrNotFound.
func GetBookingForRestaurant(ctx context.Context, db *gorm.DB, ref domain.RestaurantRef, id int64) (*domain.Booking, error) {
	var b domain.Booking
	err := db.WithContext(ctx).
		Where("id = ? AND restaurant_ref = ?", id, ref).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingByMatch fetches the booking derived from matchID.
func GetBookingByMatch(ctx context.Context, db *gorm.DB, matchID int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := db.WithContext(ctx).First(&b, "match_id = ?", matchID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBookingStatus moves booking id from status from to status to.
func UpdateBookingStatus(ctx context.Context, db *gorm.DB, id int64, from, to domain.BookingStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ListBookingsCreated returns the bookings of ref created in [from, to),
// oldest first.
func ListBookingsCreated(ctx context.Context, db *gorm.DB, ref domain.RestaurantRef, from, to time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("restaurant_ref = ? AND created_at >= ? AND created_at < ?", ref, from.UTC(), to.UTC()).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListBookingsAt returns the bookings of ref whose reservation time falls in
// [from, to), ordered by reservation time.
func ListBookingsAt(ctx context.Context, db *gorm.DB, ref domain.RestaurantRef, from, to time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	err := db.WithContext(ctx).
		Where("restaurant_ref = ? AND booking_at >= ? AND booking_at < ?", ref, from.UTC(), to.UTC()).
		Order("booking_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// Package services – RatingService
//
// Once a booking is completed either diner may rate it 1-5 with an optional
// review, once. The restaurant's aggregate rating is the arithmetic mean of
// every rating recorded for that restaurant ref. For catalog restaurants the
// aggregate is written back to the catalog row in the same transaction.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
)

// RatingService records post-dinner ratings.
type RatingService struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// Submit records userID's rating of bookingID and returns the restaurant's
// new aggregate rating.
//
// Errors:
//   - ErrInvalidRequest when value is outside 1-5.
//   - ErrBookingNotFound, ErrUnauthorized (not a diner), ErrInvalidStatus
//     (booking not completed).
//   - ErrDuplicateRequest when userID already rated the booking.
func (s *RatingService) Submit(ctx context.Context, userID, bookingID int64, value int, review string) (float64, error) {
	ctx, span := otel.Tracer("services/RatingService").Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("booking.id", bookingID),
			attribute.Int("rating", value),
		),
	)
	defer span.End()

	if value < 1 || value > 5 {
		return 0, invalid("rating must be between 1 and 5")
	}

	var avg float64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repo.GetBooking(ctx, tx, bookingID)
		if err != nil {
			if isNotFound(err) {
				return ErrBookingNotFound
			}
			return err
		}
		if !b.HasParty(userID) {
			return ErrUnauthorized
		}
		if b.Status != domain.BookingCompleted {
			return ErrInvalidStatus
		}
		r := &domain.Rating{
			BookingID:     b.ID,
			UserID:        userID,
			RestaurantRef: b.RestaurantRef,
			Value:         value,
			Review:        strings.TrimSpace(review),
		}
		if err := repo.CreateRating(ctx, tx, r); err != nil {
			if isDuplicate(err) {
				return ErrDuplicateRequest
			}
			return err
		}
		avg, _, err = repo.AverageRating(ctx, tx, b.RestaurantRef)
		if err != nil {
			return err
		}
		if id, ok := b.RestaurantRef.InternalID(); ok {
			if err := repo.UpdateRestaurantRating(ctx, tx, id, avg); err != nil && !isNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info().
		Int64("booking_id", bookingID).
		Float64("average", avg).
		Msg("rating recorded")
	return avg, nil
}

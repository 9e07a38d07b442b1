// Package services – BookingService
//
// This file implements the restaurant-facing booking lifecycle:
//
//	pending -> confirmed -> completed
//	pending | confirmed -> cancelled
//
// Only those transitions are legal; re-applying the current status is a
// no-op. Entering confirmed notifies both diners with "booking_confirmed" and
// entering cancelled notifies them with "booking_cancelled". Each
// (booking, user, event) is claimed in the notification ledger inside the
// status transaction, so a notification is handed to the Notifier at most
// once; delivery itself happens after commit and failures are only logged.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/notify"
	"github.com/tbourn/table-for-two/internal/repo"
)

const defaultPartySize = 2

// BookingInput is the data needed to create a booking.
type BookingInput struct {
	RestaurantRef   domain.RestaurantRef
	UserA, UserB    int64
	BookingAt       time.Time
	PartySize       int // 0 means the default of 2
	SpecialRequests string
	MatchID         *int64
}

// BookingService manages booking creation and status transitions.
type BookingService struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Log      zerolog.Logger
}

// Create validates in and inserts a pending booking with a fresh
// confirmation code. Internal restaurant refs must name an active catalog row.
func (s *BookingService) Create(ctx context.Context, in BookingInput) (*domain.Booking, error) {
	ctx, span := otel.Tracer("services/BookingService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("restaurant.ref", in.RestaurantRef.String())),
	)
	defer span.End()

	b, err := newBooking(in)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id, ok := in.RestaurantRef.InternalID(); ok {
			if _, err := repo.GetActiveRestaurant(ctx, tx, id); err != nil {
				if isNotFound(err) {
					return ErrRestaurantNotFound
				}
				return err
			}
		}
		return insertBooking(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("booking.id", b.ID))
	return b, nil
}

// CreateFromMatch creates the booking for an ACCEPTED match. A match yields
// at most one booking; a second call fails with ErrDuplicateRequest.
func (s *BookingService) CreateFromMatch(ctx context.Context, matchID int64) (*domain.Booking, error) {
	ctx, span := otel.Tracer("services/BookingService").Start(ctx, "CreateFromMatch",
		trace.WithAttributes(attribute.Int64("match.id", matchID)),
	)
	defer span.End()

	var out *domain.Booking
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMatch(ctx, tx, matchID)
		if err != nil {
			if isNotFound(err) {
				return ErrMatchNotFound
			}
			return err
		}
		if m.Status != domain.MatchAccepted {
			return ErrInvalidStatus
		}
		if _, err := repo.GetBookingByMatch(ctx, tx, matchID); err == nil {
			return ErrDuplicateRequest
		} else if !isNotFound(err) {
			return err
		}
		b, err := bookingFromMatch(m)
		if err != nil {
			return err
		}
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus moves bookingID, owned by restaurant owner, to newStatus.
//
// Errors:
//   - ErrBookingNotFound when the booking does not exist under owner.
//   - ErrInvalidStatus for an unknown status or an illegal transition.
//
// The returned booking reflects the committed state.
func (s *BookingService) UpdateStatus(ctx context.Context, owner domain.RestaurantRef, bookingID int64, newStatus string) (*domain.Booking, error) {
	ctx, span := otel.Tracer("services/BookingService").Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("restaurant.ref", owner.String()),
			attribute.Int64("booking.id", bookingID),
			attribute.String("booking.status", newStatus),
		),
	)
	defer span.End()

	next, err := domain.ParseBookingStatus(newStatus)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	var (
		b       *domain.Booking
		from    domain.BookingStatus
		pending []*domain.NotificationLog
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetBookingForRestaurant(ctx, tx, owner, bookingID)
		if err != nil {
			if isNotFound(err) {
				return ErrBookingNotFound
			}
			return err
		}
		b, from = cur, cur.Status
		if cur.Status == next {
			return nil
		}
		if !cur.Status.CanTransitionTo(next) {
			return ErrInvalidStatus
		}
		if err := repo.UpdateBookingStatus(ctx, tx, cur.ID, cur.Status, next); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrInvalidStatus
			}
			return err
		}
		b.Status = next
		b.UpdatedAt = time.Now().UTC()

		event := notificationEvent(next)
		if event == "" {
			return nil
		}
		for _, uid := range []int64{cur.UserA, cur.UserB} {
			rec, err := repo.RecordNotification(ctx, tx, cur.ID, uid, event)
			if errors.Is(err, repo.ErrDuplicate) {
				continue
			}
			if err != nil {
				return err
			}
			pending = append(pending, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != next {
		bookingTransitions.WithLabelValues(string(from), string(next)).Inc()
		s.Log.Info().
			Int64("booking_id", b.ID).
			Str("from", string(from)).
			Str("to", string(next)).
			Msg("booking status changed")
	}
	s.deliver(ctx, b, pending)
	return b, nil
}

// deliver hands claimed notifications to the Notifier. Failures are logged
// and counted, never retried.
func (s *BookingService) deliver(ctx context.Context, b *domain.Booking, claimed []*domain.NotificationLog) {
	for _, n := range claimed {
		payload := map[string]any{
			"booking_id":        b.ID,
			"restaurant_ref":    b.RestaurantRef.String(),
			"booking_at":        b.BookingAt.UTC().Format(time.RFC3339),
			"confirmation_code": b.ConfirmationCode,
		}
		result := "sent"
		if s.Notifier == nil {
			result = "skipped"
		} else if err := s.Notifier.Notify(ctx, n.UserID, n.Event, payload); err != nil {
			result = "failed"
			s.Log.Warn().Err(err).
				Int64("booking_id", b.ID).
				Int64("user_id", n.UserID).
				Str("event", n.Event).
				Msg("notification delivery failed")
		}
		notifications.WithLabelValues(n.Event, result).Inc()
	}
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	ctx, span := otel.Tracer("services/BookingService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("booking.id", bookingID)),
	)
	defer span.End()

	b, err := repo.GetBooking(ctx, s.DB, bookingID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListForRestaurant returns the bookings of ref whose reservation time falls
// in [from, to), earliest first.
func (s *BookingService) ListForRestaurant(ctx context.Context, ref domain.RestaurantRef, from, to time.Time) ([]domain.Booking, error) {
	ctx, span := otel.Tracer("services/BookingService").Start(ctx, "ListForRestaurant",
		trace.WithAttributes(attribute.String("restaurant.ref", ref.String())),
	)
	defer span.End()

	if ref.IsZero() || !to.After(from) {
		return nil, invalid("restaurant and a non-empty time window are required")
	}
	return repo.ListBookingsAt(ctx, s.DB, ref, from, to)
}

func notificationEvent(s domain.BookingStatus) string {
	switch s {
	case domain.BookingConfirmed:
		return domain.EventBookingConfirmed
	case domain.BookingCancelled:
		return domain.EventBookingCancelled
	}
	return ""
}

// newBooking validates in and builds a pending booking.
func newBooking(in BookingInput) (*domain.Booking, error) {
	switch {
	case in.RestaurantRef.IsZero():
		return nil, invalid("restaurant is required")
	case in.UserA <= 0 || in.UserB <= 0:
		return nil, invalid("both users are required")
	case in.UserA == in.UserB:
		return nil, invalid("a booking needs two different users")
	case in.BookingAt.IsZero():
		return nil, invalid("booking time is required")
	case in.PartySize < 0:
		return nil, invalid("party size must be positive")
	}
	size := in.PartySize
	if size == 0 {
		size = defaultPartySize
	}
	b := &domain.Booking{
		MatchID:          in.MatchID,
		RestaurantRef:    in.RestaurantRef,
		UserA:            in.UserA,
		UserB:            in.UserB,
		BookingAt:        in.BookingAt.UTC(),
		Status:           domain.BookingPending,
		PartySize:        size,
		ConfirmationCode: confirmationCode(),
	}
	if sr := strings.TrimSpace(in.SpecialRequests); sr != "" {
		b.SpecialRequests = &sr
	}
	return b, nil
}

// bookingFromMatch builds the pending booking for an accepted match: the two
// users, party of two, at the proposed time.
func bookingFromMatch(m *domain.Match) (*domain.Booking, error) {
	id := m.ID
	return newBooking(BookingInput{
		RestaurantRef: m.RestaurantRef,
		UserA:         m.UserA,
		UserB:         m.UserB,
		BookingAt:     m.ProposedAt,
		PartySize:     defaultPartySize,
		MatchID:       &id,
	})
}

// insertBooking writes b, mapping a second booking for the same match to
// ErrDuplicateRequest.
func insertBooking(ctx context.Context, tx *gorm.DB, b *domain.Booking) error {
	if err := repo.CreateBooking(ctx, tx, b); err != nil {
		if isDuplicate(err) && b.MatchID != nil {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// confirmationCode returns "TFT-" followed by eight upper-case hex digits.
func confirmationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TFT-" + strings.ToUpper(raw[:8])
}

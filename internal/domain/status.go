package domain

import (
	"errors"
	"strings"
)

// ErrUnknownStatus is returned by the Parse* helpers for values outside the
// closed status sets.
var ErrUnknownStatus = errors.New("unknown status")

// MatchStatus is the lifecycle state of a Match. Canonical form is uppercase.
type MatchStatus string

const (
	MatchPending   MatchStatus = "PENDING"
	MatchAccepted  MatchStatus = "ACCEPTED"
	MatchDeclined  MatchStatus = "DECLINED"
	MatchExpired   MatchStatus = "EXPIRED"
	MatchCompleted MatchStatus = "COMPLETED"
)

// ParseMatchStatus normalises a boundary value into a MatchStatus.
func ParseMatchStatus(s string) (MatchStatus, error) {
	switch st := MatchStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case MatchPending, MatchAccepted, MatchDeclined, MatchExpired, MatchCompleted:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no further transition is allowed.
func (s MatchStatus) Terminal() bool {
	return s == MatchDeclined || s == MatchExpired || s == MatchCompleted
}

// BookingStatus is the lifecycle state of a Booking. Canonical form is lowercase.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus normalises a boundary value into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return st, nil
	}
	return "", ErrUnknownStatus
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransitionTo reports whether s -> next is a legal booking transition.
// Staying in the same status is not a transition.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the booking can no longer change.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

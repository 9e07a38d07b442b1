package domain

import (
	"errors"
	"testing"
)

func TestParseMatchStatus_Canonicalises(t *testing.T) {
	for in, want := range map[string]MatchStatus{
		"PENDING":    MatchPending,
		"accepted":   MatchAccepted,
		" Declined ": MatchDeclined,
		"expired":    MatchExpired,
		"Completed":  MatchCompleted,
	} {
		got, err := ParseMatchStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseMatchStatus(%q) = %q,%v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMatchStatus("maybe"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestParseBookingStatus_Canonicalises(t *testing.T) {
	for in, want := range map[string]BookingStatus{
		"pending":   BookingPending,
		"CONFIRMED": BookingConfirmed,
		"Completed": BookingCompleted,
		"cancelled": BookingCancelled,
	} {
		got, err := ParseBookingStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseBookingStatus(%q) = %q,%v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "canceled", "done"} {
		if _, err := ParseBookingStatus(bad); !errors.Is(err, ErrUnknownStatus) {
			t.Fatalf("ParseBookingStatus(%q) expected ErrUnknownStatus, got %v", bad, err)
		}
	}
}

func TestBookingStatus_Transitions(t *testing.T) {
	all := []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled}
	legal := map[[2]BookingStatus]bool{
		{BookingPending, BookingConfirmed}:   true,
		{BookingPending, BookingCancelled}:   true,
		{BookingConfirmed, BookingCompleted}: true,
		{BookingConfirmed, BookingCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != legal[[2]BookingStatus{from, to}] {
				t.Fatalf("%s -> %s = %v", from, to, got)
			}
		}
	}
	if !BookingCompleted.Terminal() || !BookingCancelled.Terminal() || BookingPending.Terminal() {
		t.Fatalf("Terminal mismatch")
	}
}

func TestMatchStatus_Terminal(t *testing.T) {
	for s, want := range map[MatchStatus]bool{
		MatchPending: false, MatchAccepted: false,
		MatchDeclined: true, MatchExpired: true, MatchCompleted: true,
	} {
		if s.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v", s, !want)
		}
	}
}

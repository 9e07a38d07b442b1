package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/notify"
	"github.com/tbourn/table-for-two/internal/repo"
)

var dinner = time.Date(2025, 9, 11, 19, 0, 0, 0, time.UTC)

type bookingFixture struct {
	match   *MatchService
	booking *BookingService
	sent    *notify.Recorder
	users   []*domain.User
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := newTestDB(t)
	users := seedUsers(t, db, 3)
	seedRestaurant(t, db, 42, "Trattoria 42")
	res, _ := newResolver(db)
	rec := &notify.Recorder{}
	return &bookingFixture{
		match:   &MatchService{DB: db, Resolver: res, Log: zerolog.Nop()},
		booking: &BookingService{DB: db, Notifier: rec, Log: zerolog.Nop()},
		sent:    rec,
		users:   users,
	}
}

// acceptedBooking runs request + accept and returns the derived booking.
func (f *bookingFixture) acceptedBooking(t *testing.T) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	m, err := f.match.Request(ctx, MatchRequest{
		RequesterID: f.users[0].ID, CandidateID: f.users[1].ID,
		RestaurantRef: "42", ProposedAt: dinner.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := f.match.Respond(ctx, f.users[1].ID, m.ID, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	b, err := repo.GetBookingByMatch(ctx, f.booking.DB, m.ID)
	if err != nil {
		t.Fatalf("GetBookingByMatch: %v", err)
	}
	return b
}

func TestBooking_ConfirmNotifiesBothUsersExactlyOnce(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)
	u1, u2 := f.users[0].ID, f.users[1].ID
	owner := domain.Internal(42)

	before := testutil.ToFloat64(bookingTransitions.WithLabelValues("pending", "confirmed"))
	got, err := f.booking.UpdateStatus(ctx, owner, b.ID, "confirmed")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != domain.BookingConfirmed {
		t.Fatalf("status = %s; want confirmed", got.Status)
	}
	// Re-applying the current status (any casing) is a no-op.
	if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, " CONFIRMED "); err != nil {
		t.Fatalf("repeat UpdateStatus: %v", err)
	}

	for _, uid := range []int64{u1, u2} {
		if n := f.sent.Count(uid, domain.EventBookingConfirmed); n != 1 {
			t.Fatalf("user %d got %d confirmations; want 1", uid, n)
		}
	}
	if n := len(f.sent.Sent()); n != 2 {
		t.Fatalf("sent %d notifications; want 2", n)
	}
	if n, err := repo.CountNotifications(ctx, f.booking.DB, b.ID, domain.EventBookingConfirmed); err != nil || n != 2 {
		t.Fatalf("ledger count = %d, %v; want 2", n, err)
	}
	if got := testutil.ToFloat64(bookingTransitions.WithLabelValues("pending", "confirmed")); got != before+1 {
		t.Fatalf("transition counter = %v; want %v", got, before+1)
	}
	payload := f.sent.Sent()[0].Payload
	if payload["booking_id"] != b.ID || payload["confirmation_code"] != b.ConfirmationCode {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestBooking_CancelAndIllegalTransitions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	owner := domain.Internal(42)

	b := f.acceptedBooking(t)
	if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, "completed"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("pending->completed err = %v; want ErrInvalidStatus", err)
	}
	if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, "confirmed"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, "cancelled"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n := f.sent.Count(f.users[0].ID, domain.EventBookingCancelled); n != 1 {
		t.Fatalf("cancellations for user = %d; want 1", n)
	}
	for _, next := range []string{"pending", "confirmed", "completed"} {
		if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, next); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("cancelled->%s err = %v; want ErrInvalidStatus", next, err)
		}
	}
	got, err := f.booking.Get(ctx, b.ID)
	if err != nil || got.Status != domain.BookingCancelled {
		t.Fatalf("final status = %+v, %v", got, err)
	}
}

func TestBooking_CompletedCannotReopen(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	owner := domain.Internal(42)
	b := f.acceptedBooking(t)

	for _, next := range []string{"confirmed", "completed"} {
		if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, next); err != nil {
			t.Fatalf("%s: %v", next, err)
		}
	}
	for _, next := range []string{"pending", "confirmed", "cancelled"} {
		if _, err := f.booking.UpdateStatus(ctx, owner, b.ID, next); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("completed->%s err = %v; want ErrInvalidStatus", next, err)
		}
	}
}

func TestBooking_UpdateStatus_Lookups(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	b := f.acceptedBooking(t)

	if _, err := f.booking.UpdateStatus(ctx, domain.Internal(43), b.ID, "confirmed"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("other restaurant err = %v; want ErrBookingNotFound", err)
	}
	if _, err := f.booking.UpdateStatus(ctx, domain.Internal(42), 9999, "confirmed"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("missing booking err = %v; want ErrBookingNotFound", err)
	}
	if _, err := f.booking.UpdateStatus(ctx, domain.Internal(42), b.ID, "seated"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("unknown status err = %v; want ErrInvalidStatus", err)
	}
	if len(f.sent.Sent()) != 0 {
		t.Fatalf("failed updates must not notify")
	}
}

func TestBooking_NotifierFailureDoesNotFailTransition(t *testing.T) {
	f := newBookingFixture(t)
	f.sent.Err = errors.New("mail relay down")
	ctx := context.Background()
	b := f.acceptedBooking(t)

	before := testutil.ToFloat64(notifications.WithLabelValues(domain.EventBookingConfirmed, "failed"))
	got, err := f.booking.UpdateStatus(ctx, domain.Internal(42), b.ID, "confirmed")
	if err != nil || got.Status != domain.BookingConfirmed {
		t.Fatalf("UpdateStatus = %+v, %v", got, err)
	}
	if after := testutil.ToFloat64(notifications.WithLabelValues(domain.EventBookingConfirmed, "failed")); after != before+2 {
		t.Fatalf("failed counter = %v; want %v", after, before+2)
	}
	// No retry on a later no-op update.
	if _, err := f.booking.UpdateStatus(ctx, domain.Internal(42), b.ID, "confirmed"); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if n := len(f.sent.Sent()); n != 2 {
		t.Fatalf("notifier called %d times; want 2", n)
	}
}

func TestBooking_Create(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	u1, u2 := f.users[0].ID, f.users[1].ID

	b, err := f.booking.Create(ctx, BookingInput{
		RestaurantRef: domain.External("nyc-carbone"), UserA: u1, UserB: u2,
		BookingAt: dinner, SpecialRequests: "  window seat ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID == 0 || b.Status != domain.BookingPending || b.PartySize != 2 {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.SpecialRequests == nil || *b.SpecialRequests != "window seat" {
		t.Fatalf("SpecialRequests = %v", b.SpecialRequests)
	}
	if !regexp.MustCompile(`^TFT-[0-9A-F]{8}$`).MatchString(b.ConfirmationCode) {
		t.Fatalf("ConfirmationCode = %q", b.ConfirmationCode)
	}

	cases := []struct {
		name string
		in   BookingInput
		is   error
	}{
		{"no restaurant", BookingInput{UserA: u1, UserB: u2, BookingAt: dinner}, ErrInvalidRequest},
		{"same users", BookingInput{RestaurantRef: domain.Internal(42), UserA: u1, UserB: u1, BookingAt: dinner}, ErrInvalidRequest},
		{"no time", BookingInput{RestaurantRef: domain.Internal(42), UserA: u1, UserB: u2}, ErrInvalidRequest},
		{"negative party", BookingInput{RestaurantRef: domain.Internal(42), UserA: u1, UserB: u2, BookingAt: dinner, PartySize: -1}, ErrInvalidRequest},
		{"unknown catalog restaurant", BookingInput{RestaurantRef: domain.Internal(404), UserA: u1, UserB: u2, BookingAt: dinner}, ErrRestaurantNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.booking.Create(ctx, tc.in); !errors.Is(err, tc.is) {
				t.Fatalf("err = %v; want %v", err, tc.is)
			}
		})
	}
}

func TestBooking_CreateFromMatch(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	db := f.booking.DB
	u1, u2, u3 := f.users[0].ID, f.users[1].ID, f.users[2].ID

	pending := &domain.Match{UserA: u1, UserB: u3, RestaurantRef: domain.Internal(42), ProposedAt: dinner, Status: domain.MatchPending, CompatibilityScore: 75}
	if err := repo.CreateMatch(ctx, db, pending); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	accepted := &domain.Match{UserA: u1, UserB: u2, RestaurantRef: domain.External("nyc-carbone"), ProposedAt: dinner.Add(time.Hour), Status: domain.MatchAccepted, CompatibilityScore: 75}
	if err := repo.CreateMatch(ctx, db, accepted); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	if _, err := f.booking.CreateFromMatch(ctx, 9999); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("missing match err = %v", err)
	}
	if _, err := f.booking.CreateFromMatch(ctx, pending.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("pending match err = %v; want ErrInvalidStatus", err)
	}
	b, err := f.booking.CreateFromMatch(ctx, accepted.ID)
	if err != nil {
		t.Fatalf("CreateFromMatch: %v", err)
	}
	if b.MatchID == nil || *b.MatchID != accepted.ID || !b.BookingAt.Equal(accepted.ProposedAt) || b.RestaurantRef != accepted.RestaurantRef {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if _, err := f.booking.CreateFromMatch(ctx, accepted.ID); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second booking err = %v; want ErrDuplicateRequest", err)
	}

	// Accepting through the match service already created one.
	viaAccept := f.acceptedBooking(t)
	if _, err := f.booking.CreateFromMatch(ctx, *viaAccept.MatchID); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("booking after accept err = %v; want ErrDuplicateRequest", err)
	}
}

func TestBooking_GetAndList(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	ref := domain.Internal(42)
	db := f.booking.DB

	early := seedBooking(t, db, ref, 1, 2, domain.BookingPending, dinner.Add(-48*time.Hour), dinner)
	late := seedBooking(t, db, ref, 1, 2, domain.BookingPending, dinner.Add(-48*time.Hour), dinner.Add(2*time.Hour))
	seedBooking(t, db, ref, 1, 2, domain.BookingPending, dinner.Add(-48*time.Hour), dinner.Add(30*time.Hour))
	seedBooking(t, db, domain.Internal(7), 1, 2, domain.BookingPending, dinner.Add(-48*time.Hour), dinner)

	got, err := f.booking.ListForRestaurant(ctx, ref, dinner, dinner.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListForRestaurant: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Fatalf("unexpected list: %+v", got)
	}
	if _, err := f.booking.ListForRestaurant(ctx, ref, dinner, dinner); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty window err = %v", err)
	}

	if b, err := f.booking.Get(ctx, early.ID); err != nil || b.ID != early.ID {
		t.Fatalf("Get = %+v, %v", b, err)
	}
	if _, err := f.booking.Get(ctx, 9999); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
}

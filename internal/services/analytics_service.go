// Package services – AnalyticsService
//
// This file turns raw bookings into operator-facing statistics: per-bucket
// counts by status, a period summary, an hour-of-day histogram and a short
// list of deterministic insight messages. All of it is recomputable from the
// booking history; Snapshot persists daily buckets for reporting.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
	"github.com/tbourn/table-for-two/internal/restaurant"
)

// Period selects the DailyStats window.
type Period string

const (
	PeriodWeek  Period = "week"  // 7 daily buckets
	PeriodMonth Period = "month" // 30 daily buckets
	PeriodYear  Period = "year"  // 12 monthly buckets
)

const day = 24 * time.Hour

// ParsePeriod normalises a boundary value into a Period.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", invalid("unknown period %q", s)
}

// Bucket counts the bookings created in [Start, End).
type Bucket struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Total     int       `json:"total"`
	Confirmed int       `json:"confirmed"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
}

func (b *Bucket) add(s domain.BookingStatus) {
	b.Total++
	switch s {
	case domain.BookingConfirmed:
		b.Confirmed++
	case domain.BookingCompleted:
		b.Completed++
	case domain.BookingCancelled:
		b.Cancelled++
	}
}

// WeekDelta compares the window with the seven days before it.
type WeekDelta struct {
	Previous int     `json:"previous"`
	Change   int     `json:"change"`
	Percent  float64 `json:"percent"`
}

// Summary aggregates a whole window. CompletionRate is a percentage rounded
// to one decimal.
type Summary struct {
	TotalBookings  int        `json:"total_bookings"`
	Confirmed      int        `json:"confirmed"`
	Completed      int        `json:"completed"`
	Cancelled      int        `json:"cancelled"`
	CompletionRate float64    `json:"completion_rate"`
	AveragePerDay  float64    `json:"average_per_day"`
	WeekOverWeek   *WeekDelta `json:"week_over_week,omitempty"`
}

// Stats is the result of DailyStats.
type Stats struct {
	Restaurant domain.RestaurantProfile `json:"restaurant"`
	Period     Period                   `json:"period"`
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Buckets    []Bucket                 `json:"buckets"`
	Summary    Summary                  `json:"summary"`
	PeakHours  [24]int                  `json:"peak_hours"`
	Insights   []string                 `json:"insights"`
}

// AnalyticsService computes booking statistics per restaurant.
type AnalyticsService struct {
	DB       *gorm.DB
	Resolver *restaurant.Resolver
	Log      zerolog.Logger

	// Now is the clock; nil means time.Now. Windows end at the end of the
	// current UTC day (or month, for PeriodYear).
	Now func() time.Time
}

func (s *AnalyticsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// DailyStats aggregates the bookings of ref created in the window selected
// by period. An unknown restaurant yields ErrRestaurantNotFound; an unknown
// period yields ErrInvalidRequest.
func (s *AnalyticsService) DailyStats(ctx context.Context, ref domain.RestaurantRef, period string) (*Stats, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "DailyStats",
		trace.WithAttributes(
			attribute.String("restaurant.ref", ref.String()),
			attribute.String("period", period),
		),
	)
	defer span.End()

	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	if s.Resolver == nil {
		return nil, errors.New("analytics: resolver not configured")
	}
	profile, err := s.Resolver.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) || errors.Is(err, domain.ErrInvalidRestaurantRef) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}

	buckets := bucketsFor(p, s.now())
	from, to := buckets[0].Start, buckets[len(buckets)-1].End
	bookings, err := repo.ListBookingsCreated(ctx, s.DB, ref, from, to)
	if err != nil {
		return nil, err
	}

	st := &Stats{Restaurant: *profile, Period: p, From: from, To: to, Buckets: buckets}
	i := 0
	for _, b := range bookings {
		created := b.CreatedAt.UTC()
		for i < len(buckets)-1 && !created.Before(buckets[i].End) {
			i++
		}
		buckets[i].add(b.Status)
		st.PeakHours[b.BookingAt.UTC().Hour()]++
	}

	sum := &st.Summary
	for _, b := range buckets {
		sum.TotalBookings += b.Total
		sum.Confirmed += b.Confirmed
		sum.Completed += b.Completed
		sum.Cancelled += b.Cancelled
	}
	if sum.TotalBookings > 0 {
		sum.CompletionRate = round1(float64(sum.Completed) / float64(sum.TotalBookings) * 100)
	}
	days := to.Sub(from).Hours() / 24
	sum.AveragePerDay = round1(float64(sum.TotalBookings) / days)

	if p == PeriodWeek {
		prev, err := repo.ListBookingsCreated(ctx, s.DB, ref, from.Add(-7*day), from)
		if err != nil {
			return nil, err
		}
		sum.WeekOverWeek = weekDelta(sum.TotalBookings, len(prev))
	}

	st.Insights = insights(st)
	return st, nil
}

// Snapshot recomputes the daily bucket of every restaurant that had bookings
// created on the UTC day containing d, and upserts it. It returns how many
// snapshots were written.
func (s *AnalyticsService) Snapshot(ctx context.Context, d time.Time) (int, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "Snapshot",
		trace.WithAttributes(attribute.String("day", d.UTC().Format(time.DateOnly))),
	)
	defer span.End()

	start := d.UTC().Truncate(day)
	end := start.Add(day)
	written := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := repo.RestaurantsWithBookings(ctx, tx, start, end)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			bookings, err := repo.ListBookingsCreated(ctx, tx, ref, start, end)
			if err != nil {
				return err
			}
			var b Bucket
			for _, bk := range bookings {
				b.add(bk.Status)
			}
			avg, _, err := repo.AverageRating(ctx, tx, ref)
			if err != nil {
				return err
			}
			err = repo.UpsertSnapshot(ctx, tx, &domain.AnalyticsSnapshot{
				RestaurantRef: ref,
				Day:           start,
				Total:         int64(b.Total),
				Confirmed:     int64(b.Confirmed),
				Completed:     int64(b.Completed),
				Cancelled:     int64(b.Cancelled),
				AverageRating: avg,
			})
			if err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("snapshots", written))
	s.Log.Info().Str("day", start.Format(time.DateOnly)).Int("snapshots", written).Msg("analytics snapshot written")
	return written, nil
}

// bucketsFor lays out the empty buckets of p ending with the UTC day (or
// month) containing now.
func bucketsFor(p Period, now time.Time) []Bucket {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodYear:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
		out := make([]Bucket, 12)
		for i := range out {
			start := first.AddDate(0, i, 0)
			out[i] = Bucket{Start: start, End: start.AddDate(0, 1, 0)}
		}
		return out
	default:
		n := 7
		if p == PeriodMonth {
			n = 30
		}
		first := today.AddDate(0, 0, -(n - 1))
		out := make([]Bucket, n)
		for i := range out {
			start := first.AddDate(0, 0, i)
			out[i] = Bucket{Start: start, End: start.AddDate(0, 0, 1)}
		}
		return out
	}
}

func weekDelta(cur, prev int) *WeekDelta {
	d := &WeekDelta{Previous: prev, Change: cur - prev}
	switch {
	case prev > 0:
		d.Percent = round1(float64(cur-prev) / float64(prev) * 100)
	case cur > 0:
		d.Percent = 100
	}
	return d
}

// insights maps the summary to advisory messages. The output depends only
// on st.
func insights(st *Stats) []string {
	sum := st.Summary
	if sum.TotalBookings == 0 {
		return []string{"No bookings in this period"}
	}

	var out []string
	switch rate := sum.CompletionRate; {
	case rate >= 80:
		out = append(out, fmt.Sprintf("Excellent performance: %.1f%% of bookings completed", rate))
	case rate >= 60:
		out = append(out, fmt.Sprintf("Good performance: %.1f%% of bookings completed", rate))
	default:
		out = append(out, fmt.Sprintf("Needs improvement: only %.1f%% of bookings completed", rate))
	}

	peak := 0
	for h, n := range st.PeakHours {
		if n > st.PeakHours[peak] {
			peak = h
		}
	}
	out = append(out, fmt.Sprintf("Busiest hour is %02d:00 (%s)", peak, timeOfDay(peak)))

	if d := sum.WeekOverWeek; d != nil && d.Change != 0 {
		dir := "up"
		if d.Change < 0 {
			dir = "down"
		}
		out = append(out, fmt.Sprintf("Bookings are %s %d on the previous week", dir, absInt(d.Change)))
	}
	return out
}

// timeOfDay labels an hour of the day.
func timeOfDay(h int) string {
	switch {
	case h >= 5 && h <= 11:
		return "morning"
	case h >= 12 && h <= 16:
		return "afternoon"
	case h >= 17 && h <= 21:
		return "evening"
	default:
		return "late night"
	}
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

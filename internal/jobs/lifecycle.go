package jobs

import (
	"context"
	"time"
)

// Expirer is the slice of the match service the expiry job needs.
type Expirer interface {
	ExpirePending(ctx context.Context) (int64, error)
}

// Snapshotter is the slice of the analytics service the snapshot job needs.
type Snapshotter interface {
	Snapshot(ctx context.Context, day time.Time) (int, error)
}

// ExpiryJob sweeps PENDING matches past their expiry window.
func ExpiryJob(e Expirer, every time.Duration) Job {
	return Job{
		Name:     "match_expiry",
		Interval: every,
		Run: func(ctx context.Context) error {
			_, err := e.ExpirePending(ctx)
			return err
		},
	}
}

// SnapshotJob recomputes yesterday's and today's analytics snapshots. The
// previous day is included so bookings created just before midnight are
// captured once the day has closed. now may be nil.
func SnapshotJob(s Snapshotter, every time.Duration, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "analytics_snapshot",
		Interval: every,
		Run: func(ctx context.Context) error {
			today := now().UTC()
			for _, d := range []time.Time{today.AddDate(0, 0, -1), today} {
				if _, err := s.Snapshot(ctx, d); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Package jobs runs the time-triggered collaborators of the lifecycle: the
// pending-match expiry sweep and the daily analytics snapshot. Each job calls
// the same service operations a request would.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tft_job_runs_total",
			Help: "Scheduled job runs by job and result.",
		},
		[]string{"job", "result"},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tft_job_duration_seconds",
			Help:    "Duration of scheduled job runs.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobDuration)
}

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs every job once at start and then on its interval until the
// context is cancelled. Runs of the same job never overlap.
type Scheduler struct {
	Jobs []Job
	Log  zerolog.Logger
}

// Run blocks until ctx is cancelled and every job goroutine has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.Jobs {
		if j.Interval <= 0 {
			return fmt.Errorf("job %q: interval must be positive", j.Name)
		}
	}

	var wg sync.WaitGroup
	for _, j := range s.Jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	<-ctx.Done()
	wg.Wait()
	s.Log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	s.exec(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exec(ctx, j)
		}
	}
}

// RunOnce runs every job once, in order, and returns the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range s.Jobs {
		if err := s.exec(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

// exec runs j once, logging and counting the outcome. A panic in a job is
// recovered and reported as an error so one bad run cannot stop the loop.
func (s *Scheduler) exec(ctx context.Context, j Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		jobDuration.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())
		result := "ok"
		var ev *zerolog.Event
		if err != nil {
			result = "error"
			ev = s.Log.Error().Err(err)
		} else {
			ev = s.Log.Info()
		}
		jobRuns.WithLabelValues(j.Name, result).Inc()
		ev.Str("job", j.Name).Dur("took", time.Since(start)).Msg("job finished")
	}()
	return j.Run(ctx)
}

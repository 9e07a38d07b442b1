package main

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/notify"
	"github.com/tbourn/table-for-two/internal/restaurant"
	"github.com/tbourn/table-for-two/internal/services"
)

// serviceSet is every lifecycle service sharing one database and resolver.
// The jobs use Matches and Analytics; the rest are built here so embedding
// callers get the same wiring, including the log-backed notifier.
type serviceSet struct {
	Matches       *services.MatchService
	Bookings      *services.BookingService
	Ratings       *services.RatingService
	Analytics     *services.AnalyticsService
	Search        *services.SearchService
	Compatibility *services.CompatibilityService
}

func newServices(db *gorm.DB, resolver *restaurant.Resolver, log zerolog.Logger, expireAfter time.Duration) *serviceSet {
	component := func(name string) zerolog.Logger {
		return log.With().Str("component", name).Logger()
	}
	return &serviceSet{
		Matches: &services.MatchService{
			DB:          db,
			Resolver:    resolver,
			Log:         component("matches"),
			ExpireAfter: expireAfter,
		},
		Bookings: &services.BookingService{
			DB:       db,
			Notifier: notify.NewLog(component("notify")),
			Log:      component("bookings"),
		},
		Ratings:       &services.RatingService{DB: db, Log: component("ratings")},
		Analytics:     &services.AnalyticsService{DB: db, Resolver: resolver, Log: component("analytics")},
		Search:        &services.SearchService{DB: db, Resolver: resolver, Log: component("search")},
		Compatibility: &services.CompatibilityService{DB: db},
	}
}

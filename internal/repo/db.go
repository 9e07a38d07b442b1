// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/table-for-two/internal/domain"
)

// Option tweaks how OpenSQLite builds the handle.
type Option func(*options)

type options struct {
	tracing bool
	silent  bool
}

// WithTracing registers the OpenTelemetry GORM plugin so every query emits a
// span under the caller's context.
func WithTracing() Option { return func(o *options) { o.tracing = true } }

// WithSilentLogger disables GORM's own query logger.
func WithSilentLogger() Option { return func(o *options) { o.silent = true } }

// utcNow is used for GORM-managed timestamps. The SQLite driver stores times
// as text, so every stored instant must share the UTC zone to compare
// correctly.
func utcNow() time.Time { return time.Now().UTC() }

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts ...Option) (*gorm.DB, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{NowFunc: utcNow}
	if o.silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if o.tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// matchSlotIndex enforces the match idempotency key: at most one non-declined
// match per unordered user pair and proposed instant.
const matchSlotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_matches_pair_slot
	ON matches (pair_low, pair_high, proposed_at) WHERE status <> 'DECLINED'`

// AutoMigrate creates or updates every table and the partial unique index on
// matches that GORM tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.UserProfile{},
		&domain.UserPreferences{},
		&domain.UserFollow{},
		&domain.RestaurantFollow{},
		&domain.TimePreference{},
		&domain.Restaurant{},
		&domain.Match{},
		&domain.Booking{},
		&domain.Rating{},
		&domain.NotificationLog{},
		&domain.AnalyticsSnapshot{},
	); err != nil {
		return err
	}
	return db.Exec(matchSlotIndex).Error
}

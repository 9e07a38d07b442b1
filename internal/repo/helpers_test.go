package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/table-for-two/internal/domain"
)

// newTestDB opens a unique in-memory database per test. With migrate=true the
// full schema (including the partial index) is applied.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: utcNow,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, u *domain.User) *domain.User {
	t.Helper()
	if u.Email == "" {
		u.Email = fmt.Sprintf("%s@example.com", uuid.NewString())
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedBooking(t *testing.T, db *gorm.DB, ref domain.RestaurantRef, status domain.BookingStatus, created, at time.Time) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		RestaurantRef:    ref,
		UserA:            1,
		UserB:            2,
		BookingAt:        at,
		Status:           status,
		PartySize:        2,
		ConfirmationCode: "TFT-" + uuid.NewString()[:8],
		CreatedAt:        created,
	}
	if err := CreateBooking(context.Background(), db, b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

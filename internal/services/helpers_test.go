package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/cache"
	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
	"github.com/tbourn/table-for-two/internal/restaurant"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.OpenSQLite(dsn, repo.WithSilentLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type userSeed struct {
	name      string
	age       int
	gender    string
	inactive  bool
	noProfile bool
	prefs     *domain.UserPreferences
}

func seedUser(t *testing.T, db *gorm.DB, opts userSeed) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:    uuid.NewString() + "@example.com",
		IsActive: !opts.inactive,
	}
	if !opts.noProfile {
		name := opts.name
		if name == "" {
			name = "user"
		}
		u.Profile = &domain.UserProfile{DisplayName: name, Age: opts.age, Gender: opts.gender}
	}
	u.Preferences = opts.prefs
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedUsers(t *testing.T, db *gorm.DB, n int) []*domain.User {
	t.Helper()
	out := make([]*domain.User, n)
	for i := range out {
		out[i] = seedUser(t, db, userSeed{name: fmt.Sprintf("u%d", i+1), age: 30})
	}
	return out
}

func tags(s ...string) datatypes.JSONSlice[string] { return datatypes.JSONSlice[string](s) }

func seedRestaurant(t *testing.T, db *gorm.DB, id int64, name string) *domain.Restaurant {
	t.Helper()
	r := &domain.Restaurant{ID: id, Name: name, CuisineType: "Italian", PriceRange: 2, Rating: 4, IsActive: true}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	return r
}

func seedBooking(t *testing.T, db *gorm.DB, ref domain.RestaurantRef, a, b int64, status domain.BookingStatus, created, at time.Time) *domain.Booking {
	t.Helper()
	bk := &domain.Booking{
		RestaurantRef:    ref,
		UserA:            a,
		UserB:            b,
		BookingAt:        at,
		Status:           status,
		PartySize:        2,
		ConfirmationCode: confirmationCode(),
		CreatedAt:        created.UTC(),
	}
	if err := repo.CreateBooking(context.Background(), db, bk); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return bk
}

func newResolver(db *gorm.DB) (*restaurant.Resolver, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return &restaurant.Resolver{
		Catalog: restaurant.DBCatalog{DB: db},
		Cache:   store,
		Seed:    restaurant.DefaultSeed(),
		Log:     zerolog.Nop(),
	}, store
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(n int) *int { return &n }

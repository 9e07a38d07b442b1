package restaurant

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tbourn/table-for-two/internal/cache"
	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
)

type fakeCatalog struct {
	rows map[int64]domain.Restaurant
	err  error
}

func (f fakeCatalog) GetRestaurant(_ context.Context, id int64) (*domain.Restaurant, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

type fakeProvider struct {
	calls   atomic.Int32
	profile *domain.RestaurantProfile
	err     error
	block   bool
}

func (f *fakeProvider) Lookup(ctx context.Context, sourceID string) (*domain.RestaurantProfile, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("down") }

func newResolver(store cache.Store, p Provider) *Resolver {
	return &Resolver{
		Catalog: fakeCatalog{rows: map[int64]domain.Restaurant{
			7: {ID: 7, Name: "Catalog Bistro", CuisineType: "French", PriceRange: 3, Rating: 4.2, IsActive: true},
		}},
		Cache:    store,
		Provider: p,
		Seed:     DefaultSeed(),
		Timeout:  50 * time.Millisecond,
		Log:      zerolog.Nop(),
	}
}

func TestResolve_Internal(t *testing.T) {
	r := newResolver(cache.NewMemoryStore(), nil)

	p, err := r.Resolve(context.Background(), domain.Internal(7))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "Catalog Bistro" || p.Source != domain.SourceCatalog || p.Ref != domain.Internal(7) {
		t.Fatalf("unexpected profile: %+v", p)
	}

	before := testutil.ToFloat64(resolutions.WithLabelValues(tierNotFound))
	if _, err := r.Resolve(context.Background(), domain.Internal(99)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing internal err = %v; want ErrNotFound", err)
	}
	if got := testutil.ToFloat64(resolutions.WithLabelValues(tierNotFound)); got != before+1 {
		t.Fatalf("not_found counter = %v; want %v", got, before+1)
	}
}

func TestResolve_InternalStorageErrorIsRaw(t *testing.T) {
	boom := errors.New("disk on fire")
	r := newResolver(nil, nil)
	r.Catalog = fakeCatalog{err: boom}
	if _, err := r.Resolve(context.Background(), domain.Internal(1)); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want raw storage error", err)
	}
}

func TestResolve_ZeroRef(t *testing.T) {
	r := newResolver(nil, nil)
	if _, err := r.Resolve(context.Background(), domain.RestaurantRef{}); !errors.Is(err, domain.ErrInvalidRestaurantRef) {
		t.Fatalf("err = %v; want ErrInvalidRestaurantRef", err)
	}
}

func TestResolve_ProviderResultIsCached(t *testing.T) {
	store := cache.NewMemoryStore()
	prov := &fakeProvider{profile: &domain.RestaurantProfile{Name: "Live Place", Cuisine: "Thai", Rating: 4.7}}
	r := newResolver(store, prov)
	ref := domain.External("live-1")

	p, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "Live Place" || p.Source != domain.SourceProvider || p.Ref != ref {
		t.Fatalf("unexpected profile: %+v", p)
	}

	p, err = r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if p.Name != "Live Place" || p.Source != domain.SourceCache {
		t.Fatalf("second resolve not served from cache: %+v", p)
	}
	if got := prov.calls.Load(); got != 1 {
		t.Fatalf("provider calls = %d; want 1", got)
	}
}

func TestResolve_SeedFallbackThenCacheHit(t *testing.T) {
	store := cache.NewMemoryStore()
	prov := &fakeProvider{err: errors.New("503")}
	r := newResolver(store, prov)
	ref := domain.External("nyc-carbone")

	p, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Source != domain.SourceSeed || p.Name != DefaultSeed()["nyc-carbone"].Name {
		t.Fatalf("expected seed profile, got %+v", p)
	}
	if store.Len() != 1 {
		t.Fatalf("seed result not cached; store has %d entries", store.Len())
	}

	p, err = r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if p.Source != domain.SourceCache {
		t.Fatalf("second resolve source = %q; want cache", p.Source)
	}
	if got := prov.calls.Load(); got != 1 {
		t.Fatalf("provider calls = %d; want 1", got)
	}
}

func TestResolve_ProviderTimeoutFallsThrough(t *testing.T) {
	prov := &fakeProvider{block: true}
	r := newResolver(cache.NewMemoryStore(), prov)

	start := time.Now()
	p, err := r.Resolve(context.Background(), domain.External("nyc-carbone"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Source != domain.SourceSeed {
		t.Fatalf("source = %q; want seed", p.Source)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("provider timeout not enforced")
	}
}

func TestResolve_PlaceholderIsNotCached(t *testing.T) {
	store := cache.NewMemoryStore()
	r := newResolver(store, &fakeProvider{err: ErrProviderNotFound})
	ref := domain.External("nowhere")

	before := testutil.ToFloat64(resolutions.WithLabelValues(tierPlaceholder))
	for i := 0; i < 2; i++ {
		p, err := r.Resolve(context.Background(), ref)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if p.Name != PlaceholderName || p.Rating != PlaceholderRating || p.Source != domain.SourcePlaceholder {
			t.Fatalf("unexpected placeholder: %+v", p)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("placeholder was cached")
	}
	if got := testutil.ToFloat64(resolutions.WithLabelValues(tierPlaceholder)); got != before+2 {
		t.Fatalf("placeholder counter = %v; want %v", got, before+2)
	}
}

func TestResolve_BrokenCacheNeverSurfaces(t *testing.T) {
	prov := &fakeProvider{profile: &domain.RestaurantProfile{Name: "Live Place"}}
	r := newResolver(brokenStore{}, prov)

	p, err := r.Resolve(context.Background(), domain.External("x"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "Live Place" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	r.AssociateMatch(context.Background(), 1, "ignored")
	if got := r.MatchName(context.Background(), 1, domain.Internal(7)); got != "Catalog Bistro" {
		t.Fatalf("MatchName = %q", got)
	}
}

func TestRemember_ShortCircuitsProvider(t *testing.T) {
	store := cache.NewMemoryStore()
	prov := &fakeProvider{profile: &domain.RestaurantProfile{Name: "Live Place"}}
	r := newResolver(store, prov)
	ref := domain.External("searched")

	r.Remember(context.Background(), &domain.RestaurantProfile{Ref: ref, Name: "From Search", Source: domain.SourceProvider})
	r.Remember(context.Background(), &domain.RestaurantProfile{Ref: domain.Internal(7), Name: "ignored"})
	r.Remember(context.Background(), nil)

	p, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name != "From Search" {
		t.Fatalf("Name = %q; want From Search", p.Name)
	}
	if prov.calls.Load() != 0 {
		t.Fatalf("provider called despite remembered profile")
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d entries; want 1", store.Len())
	}
}

func TestDisplayName(t *testing.T) {
	r := newResolver(cache.NewMemoryStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		ref      domain.RestaurantRef
		supplied string
		want     string
	}{
		{"client name wins", domain.Internal(7), "  Date Spot ", "Date Spot"},
		{"unknown name is ignored", domain.Internal(7), UnknownName, "Catalog Bistro"},
		{"resolved internal", domain.Internal(7), "", "Catalog Bistro"},
		{"missing internal", domain.Internal(404), "", UnknownName},
		{"external placeholder", domain.External("nowhere"), "", PlaceholderName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.DisplayName(ctx, tc.ref, tc.supplied); got != tc.want {
				t.Fatalf("DisplayName = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestMatchName(t *testing.T) {
	store := cache.NewMemoryStore()
	r := newResolver(store, nil)
	ctx := context.Background()

	r.AssociateMatch(ctx, 10, "Picked By Client")
	if got := r.MatchName(ctx, 10, domain.Internal(7)); got != "Picked By Client" {
		t.Fatalf("associated name = %q", got)
	}

	if got := r.MatchName(ctx, 11, domain.Internal(7)); got != "Catalog Bistro" {
		t.Fatalf("resolved name = %q", got)
	}
	raw, err := store.Get(ctx, "match_restaurant_11")
	if err != nil || string(raw) != "Catalog Bistro" {
		t.Fatalf("resolved name not associated: %q, %v", raw, err)
	}

	if got := r.MatchName(ctx, 12, domain.Internal(404)); got != UnknownName {
		t.Fatalf("missing name = %q; want %q", got, UnknownName)
	}
	if _, err := store.Get(ctx, "match_restaurant_12"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("unknown name must not be associated, err = %v", err)
	}
}

func TestDBCatalog(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"), repo.WithSilentLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	live := domain.Restaurant{Name: "Live", PriceRange: 2, IsActive: true}
	gone := domain.Restaurant{Name: "Gone", PriceRange: 2, IsActive: false}
	if err := db.Create(&live).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&gone).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	r := &Resolver{Catalog: DBCatalog{DB: db}, Log: zerolog.Nop()}
	p, err := r.Resolve(context.Background(), domain.Internal(live.ID))
	if err != nil || p.Name != "Live" {
		t.Fatalf("Resolve live = %+v, %v", p, err)
	}
	if _, err := r.Resolve(context.Background(), domain.Internal(gone.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive restaurant err = %v; want ErrNotFound", err)
	}
}

// Package services – SearchService
//
// Restaurant discovery over both namespaces: active catalog rows and the
// resolver's built-in directory of external restaurants. External results
// are remembered in the resolver cache as they are surfaced, so a match or
// booking created from a search result resolves without a provider call.
package services

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
	"github.com/tbourn/table-for-two/internal/restaurant"
	"github.com/tbourn/table-for-two/internal/search"
)

const maxSearchLimit = 50

// SearchService finds restaurants for a date.
type SearchService struct {
	DB       *gorm.DB
	Resolver *restaurant.Resolver
	Log      zerolog.Logger
}

// Search ranks catalog and directory restaurants against q.
//
// Errors:
//   - ErrInvalidRequest when MaxPrice is outside 0-4 or Limit outside 0-50.
func (s *SearchService) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	ctx, span := otel.Tracer("services/SearchService").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("search.cuisine", q.Cuisine),
			attribute.Int("search.max_price", q.MaxPrice),
		),
	)
	defer span.End()

	if q.MaxPrice < 0 || q.MaxPrice > 4 {
		return nil, invalid("max price must be between 0 and 4")
	}
	if q.Limit < 0 || q.Limit > maxSearchLimit {
		return nil, invalid("limit must be between 0 and %d", maxSearchLimit)
	}
	q.Cuisine = strings.TrimSpace(q.Cuisine)

	rows, err := repo.ListActiveRestaurants(ctx, s.DB, q.Cuisine)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.RestaurantProfile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, *r.Profile())
	}
	profiles = append(profiles, s.directory()...)

	results := search.New(profiles).Search(q)
	if results == nil {
		results = []search.Result{}
	}
	if s.Resolver != nil {
		for i := range results {
			if results[i].Profile.Ref.IsExternal() {
				s.Resolver.Remember(ctx, &results[i].Profile)
			}
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	s.Log.Debug().
		Str("query", q.Text).
		Int("candidates", len(profiles)).
		Int("results", len(results)).
		Msg("restaurant search")
	return results, nil
}

// directory returns the resolver's seed profiles in a stable order.
func (s *SearchService) directory() []domain.RestaurantProfile {
	if s.Resolver == nil || len(s.Resolver.Seed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.Resolver.Seed))
	for id := range s.Resolver.Seed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.RestaurantProfile, 0, len(ids))
	for _, id := range ids {
		p := s.Resolver.Seed[id]
		p.Ref = domain.External(id)
		p.Source = domain.SourceSeed
		out = append(out, p)
	}
	return out
}

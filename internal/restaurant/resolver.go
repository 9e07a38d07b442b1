// Package restaurant resolves RestaurantRefs into display profiles across the
// two restaurant namespaces.
//
// Internal refs are authoritative: they resolve through the catalog or fail
// with ErrNotFound. External refs never fail: the resolver walks a fallback
// chain and logs the tier it used.
//
//  1. cache entry "restaurant_api_<sourceId>"
//  2. live provider lookup under a bounded timeout (result is cached)
//  3. built-in seed table (result is cached)
//  4. placeholder profile "Local Restaurant", rating 4.0 (not cached)
//
// Cache and provider failures are absorbed here and never reach callers.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/table-for-two/internal/cache"
	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
)

var (
	// ErrNotFound is returned for internal refs that are absent or inactive.
	ErrNotFound = errors.New("restaurant not found")

	// ErrUpstreamUnavailable wraps provider failures in logs. It is never
	// returned from Resolve.
	ErrUpstreamUnavailable = errors.New("restaurant provider unavailable")
)

// Display names used when nothing better is known.
const (
	PlaceholderName   = "Local Restaurant"
	PlaceholderRating = 4.0
	UnknownName       = "Unknown Restaurant"
)

const (
	defaultTimeout = 5 * time.Second
	defaultTTL     = 24 * time.Hour
)

// Resolver turns RestaurantRefs into profiles. Catalog is required; Cache,
// Provider and Seed are optional tiers.
type Resolver struct {
	Catalog  Catalog
	Cache    cache.Store
	Provider Provider
	Seed     map[string]domain.RestaurantProfile

	// Timeout bounds a single provider lookup (default 5s).
	Timeout time.Duration
	// TTL applies to every cache entry written by the resolver (default 24h).
	TTL time.Duration

	Log zerolog.Logger
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return defaultTimeout
}

func (r *Resolver) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return defaultTTL
}

// profileKey is the cache key of an external restaurant profile.
func profileKey(sourceID string) string { return "restaurant_api_" + sourceID }

// matchNameKey is the cache key of the display name associated with a match.
func matchNameKey(matchID int64) string { return "match_restaurant_" + strconv.FormatInt(matchID, 10) }

// Resolve returns the display profile of ref. Only internal refs can fail:
// ErrNotFound for absent/inactive rows, or the raw storage error.
func (r *Resolver) Resolve(ctx context.Context, ref domain.RestaurantRef) (*domain.RestaurantProfile, error) {
	ctx, span := otel.Tracer("restaurant/Resolver").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("restaurant.ref", ref.String())),
	)
	defer span.End()

	if id, ok := ref.InternalID(); ok {
		return r.resolveInternal(ctx, id)
	}
	if src, ok := ref.SourceID(); ok {
		p := r.resolveExternal(ctx, src)
		span.SetAttributes(attribute.String("restaurant.source", p.Source))
		return p, nil
	}
	return nil, domain.ErrInvalidRestaurantRef
}

func (r *Resolver) resolveInternal(ctx context.Context, id int64) (*domain.RestaurantProfile, error) {
	row, err := r.Catalog.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			resolutions.WithLabelValues(tierNotFound).Inc()
			return nil, ErrNotFound
		}
		return nil, err
	}
	resolutions.WithLabelValues(tierCatalog).Inc()
	return row.Profile(), nil
}

func (r *Resolver) resolveExternal(ctx context.Context, sourceID string) *domain.RestaurantProfile {
	log := r.Log.With().Str("source_id", sourceID).Logger()
	ref := domain.External(sourceID)

	// 1) cache
	if p, ok := r.cached(ctx, sourceID, log); ok {
		resolutions.WithLabelValues(tierCache).Inc()
		log.Debug().Str("tier", tierCache).Msg("restaurant resolved")
		return p
	}

	// 2) provider
	if r.Provider != nil {
		lctx, cancel := context.WithTimeout(ctx, r.timeout())
		p, err := r.Provider.Lookup(lctx, sourceID)
		cancel()
		if err == nil && p != nil {
			p.Ref = ref
			p.Source = domain.SourceProvider
			r.store(ctx, p, log)
			resolutions.WithLabelValues(tierProvider).Inc()
			log.Debug().Str("tier", tierProvider).Msg("restaurant resolved")
			return p
		}
		if err == nil {
			err = errors.New("empty provider response")
		}
		log.Warn().Err(fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)).Msg("provider lookup failed, falling back")
	}

	// 3) seed table
	if seed, ok := r.Seed[sourceID]; ok {
		p := seed
		p.Ref = ref
		p.Source = domain.SourceSeed
		r.store(ctx, &p, log)
		resolutions.WithLabelValues(tierSeed).Inc()
		log.Info().Str("tier", tierSeed).Msg("restaurant resolved from seed table")
		return &p
	}

	// 4) placeholder
	resolutions.WithLabelValues(tierPlaceholder).Inc()
	log.Info().Str("tier", tierPlaceholder).Msg("restaurant unresolved, using placeholder")
	return &domain.RestaurantProfile{
		Ref:    ref,
		Name:   PlaceholderName,
		Rating: PlaceholderRating,
		Source: domain.SourcePlaceholder,
	}
}

// cached reads the profile cache. Misses and failures both report ok=false;
// failures are logged.
func (r *Resolver) cached(ctx context.Context, sourceID string, log zerolog.Logger) (*domain.RestaurantProfile, bool) {
	if r.Cache == nil {
		return nil, false
	}
	var p domain.RestaurantProfile
	err := cache.GetJSON(ctx, r.Cache, profileKey(sourceID), &p)
	switch {
	case err == nil:
		p.Ref = domain.External(sourceID)
		p.Source = domain.SourceCache
		return &p, true
	case errors.Is(err, cache.ErrMiss):
		log.Debug().Msg("restaurant cache miss")
	default:
		log.Warn().Err(err).Msg("restaurant cache read failed")
	}
	return nil, false
}

// store writes an external profile to the cache; failures are logged only.
func (r *Resolver) store(ctx context.Context, p *domain.RestaurantProfile, log zerolog.Logger) {
	if r.Cache == nil {
		return
	}
	src, ok := p.Ref.SourceID()
	if !ok {
		return
	}
	if err := cache.SetJSON(ctx, r.Cache, profileKey(src), p, r.ttl()); err != nil {
		log.Warn().Err(err).Msg("restaurant cache write failed")
	}
}

// Remember caches an external profile at the moment it is surfaced to a
// client (for example in search results), so later resolutions short-circuit
// at the cache. Internal refs are ignored.
func (r *Resolver) Remember(ctx context.Context, p *domain.RestaurantProfile) {
	if p == nil || !p.Ref.IsExternal() {
		return
	}
	r.store(ctx, p, r.Log.With().Str("source_id", p.Ref.String()).Logger())
}

// DisplayName returns supplied when the client provided a usable name,
// otherwise the resolved name. Internal refs that cannot be resolved yield
// UnknownName.
func (r *Resolver) DisplayName(ctx context.Context, ref domain.RestaurantRef, supplied string) string {
	if s := strings.TrimSpace(supplied); s != "" && s != UnknownName {
		return s
	}
	p, err := r.Resolve(ctx, ref)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.Log.Warn().Err(err).Str("restaurant_ref", ref.String()).Msg("restaurant name lookup failed")
		}
		return UnknownName
	}
	return p.Name
}

// AssociateMatch records the display name shown for matchID. Best-effort.
func (r *Resolver) AssociateMatch(ctx context.Context, matchID int64, name string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Set(ctx, matchNameKey(matchID), []byte(name), r.ttl()); err != nil {
		r.Log.Warn().Err(err).Int64("match_id", matchID).Msg("match name cache write failed")
	}
}

// MatchName returns the name associated with matchID, falling back to
// resolving ref. Unresolvable refs yield UnknownName.
func (r *Resolver) MatchName(ctx context.Context, matchID int64, ref domain.RestaurantRef) string {
	if r.Cache != nil {
		raw, err := r.Cache.Get(ctx, matchNameKey(matchID))
		switch {
		case err == nil && len(raw) > 0:
			return string(raw)
		case err != nil && !errors.Is(err, cache.ErrMiss):
			r.Log.Warn().Err(err).Int64("match_id", matchID).Msg("match name cache read failed")
		}
	}
	name := r.DisplayName(ctx, ref, "")
	if name != UnknownName {
		r.AssociateMatch(ctx, matchID, name)
	}
	return name
}

// Package services – MatchService
//
// This file implements the match request state machine:
//
//	PENDING -> ACCEPTED | DECLINED
//	PENDING -> EXPIRED       (time-based, see ExpirePending)
//	ACCEPTED -> COMPLETED    (after the date, see Complete)
//
// DECLINED, EXPIRED and COMPLETED are terminal. At most one non-declined
// match may exist for an unordered pair of users at one instant; the check
// runs inside the insert transaction and the partial unique index
// ux_matches_pair_slot enforces it under concurrency.
//
// Observability: all public methods are OpenTelemetry-instrumented and
// request/response outcomes are counted in Prometheus.
package services

import (
	"context"
	"errors"
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

const (
	defaultCompatibilityScore = 75
	defaultExpireAfter        = 48 * time.Hour
)

// proposedLayouts are the accepted forms of a proposed date-time. Layouts
// without a zone are read as UTC.
var proposedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// MatchRequest is a request from RequesterID to meet CandidateID.
type MatchRequest struct {
	RequesterID int64
	CandidateID int64

	// RestaurantRef is the boundary form: "<id>" or "api_<sourceId>".
	RestaurantRef string
	// RestaurantName is an optional client-supplied display name.
	RestaurantName string

	// ProposedAt is parsed leniently; an empty or unparseable value means now.
	ProposedAt string
	TableID    *int64

	// Score is the client's compatibility score; nil means 75.
	Score *int
}

// MatchView is a match as shown to one of its parties.
type MatchView struct {
	domain.Match
	OtherUserID    int64  `json:"other_user_id"`
	RestaurantName string `json:"restaurant_name"`
}

// MatchService owns the match lifecycle. Accepting a match creates its
// booking in the same transaction.
type MatchService struct {
	DB       *gorm.DB
	Resolver *restaurant.Resolver
	Log      zerolog.Logger

	// ExpireAfter is how long a match may stay PENDING (default 48h).
	ExpireAfter time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *MatchService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Request creates a PENDING match.
//
// Validation (nothing is written on failure):
//   - ErrInvalidRequest for missing ids, requester == candidate, or a
//     malformed restaurant ref.
//   - ErrUserNotFound when either user does not exist.
//   - ErrDuplicateRequest when a non-declined match for the same pair and
//     instant exists.
//
// After commit the restaurant display name (client-supplied or resolved) is
// associated with the match in the cache; failures there are only logged.
func (s *MatchService) Request(ctx context.Context, req MatchRequest) (*MatchView, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "Request",
		trace.WithAttributes(
			attribute.Int64("user.requester", req.RequesterID),
			attribute.Int64("user.candidate", req.CandidateID),
			attribute.String("restaurant.ref", req.RestaurantRef),
		),
	)
	defer span.End()

	m, err := s.request(ctx, req)
	switch {
	case err == nil:
		matchRequests.WithLabelValues("created").Inc()
	case errors.Is(err, ErrDuplicateRequest):
		matchRequests.WithLabelValues("duplicate").Inc()
		return nil, err
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound):
		matchRequests.WithLabelValues("invalid").Inc()
		return nil, err
	default:
		matchRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.Int64("match.id", m.ID))

	name := restaurant.UnknownName
	if s.Resolver != nil {
		name = s.Resolver.DisplayName(ctx, m.RestaurantRef, req.RestaurantName)
		s.Resolver.AssociateMatch(ctx, m.ID, name)
	} else if n := strings.TrimSpace(req.RestaurantName); n != "" {
		name = n
	}
	s.Log.Info().
		Int64("match_id", m.ID).
		Int64("requester", m.UserA).
		Int64("candidate", m.UserB).
		Str("restaurant_ref", m.RestaurantRef.String()).
		Msg("match requested")

	return &MatchView{Match: *m, OtherUserID: m.UserB, RestaurantName: name}, nil
}

func (s *MatchService) request(ctx context.Context, req MatchRequest) (*domain.Match, error) {
	if req.RequesterID <= 0 || req.CandidateID <= 0 {
		return nil, invalid("requester and candidate are required")
	}
	if req.RequesterID == req.CandidateID {
		return nil, invalid("cannot request a match with yourself")
	}
	ref, err := domain.ParseRestaurantRef(req.RestaurantRef)
	if err != nil {
		return nil, invalid("restaurant: %v", err)
	}
	at := s.parseProposed(req.ProposedAt)
	score := defaultCompatibilityScore
	if req.Score != nil {
		score = clampScore(*req.Score)
	}

	m := &domain.Match{
		UserA:              req.RequesterID,
		UserB:              req.CandidateID,
		RestaurantRef:      ref,
		TableID:            req.TableID,
		ProposedAt:         at,
		Status:             domain.MatchPending,
		CompatibilityScore: score,
		CreatedAt:          s.now(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []int64{req.RequesterID, req.CandidateID} {
			ok, err := repo.UserExists(ctx, tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrUserNotFound
			}
		}
		if _, err := repo.FindActiveMatch(ctx, tx, m.UserA, m.UserB, at); err == nil {
			return ErrDuplicateRequest
		} else if !isNotFound(err) {
			return err
		}
		if err := repo.CreateMatch(ctx, tx, m); err != nil {
			if isDuplicate(err) {
				return ErrDuplicateRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// parseProposed reads raw with the accepted layouts. Anything unreadable
// falls back to now. The result is UTC, truncated to the second.
func (s *MatchService) parseProposed(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range proposedLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Truncate(time.Second)
			}
		}
		s.Log.Warn().Str("proposed_at", raw).Msg("unparseable proposed time, using now")
	}
	return s.now().Truncate(time.Second)
}

// Respond records userID's answer to matchID.
//
// Errors:
//   - ErrMatchNotFound when the match does not exist.
//   - ErrUnauthorized when userID is not one of the two parties.
//   - ErrInvalidStatus when the match is no longer PENDING.
//
// Accepting creates the match's pending booking in the same transaction.
func (s *MatchService) Respond(ctx context.Context, userID, matchID int64, accept bool) (*domain.Match, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("match.id", matchID),
			attribute.Bool("accept", accept),
		),
	)
	defer span.End()

	to := domain.MatchDeclined
	if accept {
		to = domain.MatchAccepted
	}
	var out *domain.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMatch(ctx, tx, matchID)
		if err != nil {
			if isNotFound(err) {
				return ErrMatchNotFound
			}
			return err
		}
		if !m.HasParty(userID) {
			return ErrUnauthorized
		}
		if m.Status != domain.MatchPending {
			return ErrInvalidStatus
		}
		now := s.now()
		if err := repo.UpdateMatchStatus(ctx, tx, m.ID, domain.MatchPending, to, &now); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrInvalidStatus
			}
			return err
		}
		m.Status, m.RespondedAt = to, &now

		if accept {
			b, err := bookingFromMatch(m)
			if err != nil {
				return err
			}
			if err := insertBooking(ctx, tx, b); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	matchResponses.WithLabelValues(strings.ToLower(string(to))).Inc()
	s.Log.Info().Int64("match_id", matchID).Int64("user_id", userID).Str("status", string(to)).Msg("match answered")
	return out, nil
}

// Complete marks an ACCEPTED match COMPLETED once the date has happened.
func (s *MatchService) Complete(ctx context.Context, matchID int64) (*domain.Match, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "Complete",
		trace.WithAttributes(attribute.Int64("match.id", matchID)),
	)
	defer span.End()

	var out *domain.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMatch(ctx, tx, matchID)
		if err != nil {
			if isNotFound(err) {
				return ErrMatchNotFound
			}
			return err
		}
		if m.Status != domain.MatchAccepted {
			return ErrInvalidStatus
		}
		if err := repo.UpdateMatchStatus(ctx, tx, m.ID, domain.MatchAccepted, domain.MatchCompleted, nil); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return ErrInvalidStatus
			}
			return err
		}
		m.Status = domain.MatchCompleted
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpirePending marks matches that have been PENDING for longer than
// ExpireAfter as EXPIRED and returns how many changed.
func (s *MatchService) ExpirePending(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "ExpirePending")
	defer span.End()

	after := s.ExpireAfter
	if after <= 0 {
		after = defaultExpireAfter
	}
	n, err := repo.ExpirePendingMatches(ctx, s.DB, s.now().Add(-after))
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("expired", n))
	if n > 0 {
		s.Log.Info().Int64("expired", n).Msg("pending matches expired")
	}
	return n, nil
}

// Get returns a match by id.
func (s *MatchService) Get(ctx context.Context, matchID int64) (*domain.Match, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("match.id", matchID)),
	)
	defer span.End()

	m, err := repo.GetMatch(ctx, s.DB, matchID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListForUser returns the matches userID is a party to, newest first, each
// with the other party and the restaurant display name.
func (s *MatchService) ListForUser(ctx context.Context, userID int64) ([]MatchView, error) {
	ctx, span := otel.Tracer("services/MatchService").Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	rows, err := repo.ListMatchesForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MatchView, 0, len(rows))
	for _, m := range rows {
		name := restaurant.UnknownName
		if s.Resolver != nil {
			name = s.Resolver.MatchName(ctx, m.ID, m.RestaurantRef)
		}
		out = append(out, MatchView{Match: m, OtherUserID: m.Other(userID), RestaurantName: name})
	}
	return out, nil
}

// Package services – CompatibilityService
//
// This file implements candidate suggestion. Scoring is a pure function of
// the current profile, preference and follow state; the service never writes.
//
// Score policy (starting from 50, clamped to [0, 100]):
//   - +10 per shared declared interest
//   - +15 per shared value tag
//   - +5 per restaurant both users follow, capped at +25
//   - +5 per shared active free-time slot, capped at +10
//   - +5 if the requesting user follows the candidate
//
// Candidates are active users with a profile who pass both users' age and
// gender preferences (an empty or "any" gender preference admits everyone).
// Results are ordered by score descending, then user id ascending.
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/domain"
	"github.com/tbourn/table-for-two/internal/repo"
)

const (
	baseScore             = 50
	interestPoints        = 10
	valuePoints           = 15
	sharedRestaurantPoint = 5
	sharedRestaurantCap   = 25
	sharedSlotPoints      = 5
	sharedSlotCap         = 10
	followBonus           = 5
)

// Suggestion is one scored candidate. SharedSignals lists what contributed,
// e.g. "interest:jazz", "restaurant:api_abc", "follows".
type Suggestion struct {
	CandidateID   int64    `json:"candidate_id"`
	DisplayName   string   `json:"display_name"`
	Score         int      `json:"score"`
	SharedSignals []string `json:"shared_signals"`
}

// CompatibilityService scores pairs of users.
type CompatibilityService struct {
	DB *gorm.DB
}

// signals is everything the scorer knows about one user.
type signals struct {
	user        domain.User
	restaurants []domain.RestaurantRef
	slots       []time.Time
}

// Suggest returns up to limit scored candidates for forUser (limit <= 0 means
// all). An unknown forUser yields ErrUserNotFound.
func (s *CompatibilityService) Suggest(ctx context.Context, forUser int64, limit int) ([]Suggestion, error) {
	ctx, span := otel.Tracer("services/CompatibilityService").Start(ctx, "Suggest",
		trace.WithAttributes(
			attribute.Int64("user.id", forUser),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	me, err := repo.GetUser(ctx, s.DB, forUser)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	pool, err := repo.ListCandidateUsers(ctx, s.DB, forUser)
	if err != nil {
		return nil, err
	}
	candidates := pool[:0]
	for _, c := range pool {
		if admits(me.Preferences, c.Profile) && admits(c.Preferences, me.Profile) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return []Suggestion{}, nil
	}

	ids := make([]int64, 0, len(candidates)+1)
	ids = append(ids, forUser)
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	follows, err := repo.FollowedRestaurants(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	slots, err := repo.ActiveTimeSlots(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	followed, err := repo.FollowedUsers(ctx, s.DB, forUser)
	if err != nil {
		return nil, err
	}
	followSet := make(map[int64]bool, len(followed))
	for _, id := range followed {
		followSet[id] = true
	}

	mine := signals{user: *me, restaurants: follows[forUser], slots: slots[forUser]}
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		theirs := signals{user: c, restaurants: follows[c.ID], slots: slots[c.ID]}
		score, shared := score(mine, theirs, followSet[c.ID])
		out = append(out, Suggestion{
			CandidateID:   c.ID,
			DisplayName:   c.Profile.DisplayName,
			Score:         score,
			SharedSignals: shared,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	span.SetAttributes(attribute.Int("suggestions", len(out)))
	return out, nil
}

// Score returns the compatibility of a with b as seen by a (the follow bonus
// is one-directional). Preference filters are not applied.
func (s *CompatibilityService) Score(ctx context.Context, a, b int64) (int, []string, error) {
	ctx, span := otel.Tracer("services/CompatibilityService").Start(ctx, "Score",
		trace.WithAttributes(
			attribute.Int64("user.a", a),
			attribute.Int64("user.b", b),
		),
	)
	defer span.End()

	if a == b {
		return 0, nil, invalid("cannot score a user against themselves")
	}
	ua, err := repo.GetUser(ctx, s.DB, a)
	if err != nil {
		if isNotFound(err) {
			return 0, nil, ErrUserNotFound
		}
		return 0, nil, err
	}
	ub, err := repo.GetUser(ctx, s.DB, b)
	if err != nil {
		if isNotFound(err) {
			return 0, nil, ErrUserNotFound
		}
		return 0, nil, err
	}
	follows, err := repo.FollowedRestaurants(ctx, s.DB, []int64{a, b})
	if err != nil {
		return 0, nil, err
	}
	slots, err := repo.ActiveTimeSlots(ctx, s.DB, []int64{a, b})
	if err != nil {
		return 0, nil, err
	}
	followed, err := repo.FollowedUsers(ctx, s.DB, a)
	if err != nil {
		return 0, nil, err
	}
	followsB := false
	for _, id := range followed {
		if id == b {
			followsB = true
			break
		}
	}
	sc, shared := score(
		signals{user: *ua, restaurants: follows[a], slots: slots[a]},
		signals{user: *ub, restaurants: follows[b], slots: slots[b]},
		followsB,
	)
	return sc, shared, nil
}

func score(me, them signals, followsThem bool) (int, []string) {
	total := baseScore
	shared := []string{}

	var myInterests, theirInterests, myValues, theirValues []string
	if p := me.user.Preferences; p != nil {
		myInterests, myValues = p.Interests, p.Values
	}
	if p := them.user.Preferences; p != nil {
		theirInterests, theirValues = p.Interests, p.Values
	}
	for _, tag := range intersectTags(myInterests, theirInterests) {
		total += interestPoints
		shared = append(shared, "interest:"+tag)
	}
	for _, tag := range intersectTags(myValues, theirValues) {
		total += valuePoints
		shared = append(shared, "value:"+tag)
	}

	theirRestaurants := make(map[domain.RestaurantRef]bool, len(them.restaurants))
	for _, r := range them.restaurants {
		theirRestaurants[r] = true
	}
	bonus := 0
	for _, r := range me.restaurants {
		if theirRestaurants[r] {
			bonus += sharedRestaurantPoint
			shared = append(shared, "restaurant:"+r.String())
		}
	}
	total += min(bonus, sharedRestaurantCap)

	theirSlots := make(map[int64]bool, len(them.slots))
	for _, t := range them.slots {
		theirSlots[t.Unix()] = true
	}
	bonus = 0
	for _, t := range me.slots {
		if theirSlots[t.Unix()] {
			bonus += sharedSlotPoints
			shared = append(shared, "time:"+t.UTC().Format(time.RFC3339))
		}
	}
	total += min(bonus, sharedSlotCap)

	if followsThem {
		total += followBonus
		shared = append(shared, "follows")
	}
	return clampScore(total), shared
}

// intersectTags returns the tags present in both lists, compared after
// trimming and lower-casing, in the order they appear in a.
func intersectTags(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	in := make(map[string]bool, len(b))
	for _, t := range b {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			in[t] = true
		}
	}
	var out []string
	seen := map[string]bool{}
	for _, t := range a {
		t = strings.ToLower(strings.TrimSpace(t))
		if in[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// admits reports whether prefs accept someone with profile. Missing
// preferences accept everyone; a zero age bound is disabled; an empty
// preferred gender accepts any gender.
func admits(prefs *domain.UserPreferences, profile *domain.UserProfile) bool {
	if prefs == nil {
		return true
	}
	var p domain.UserProfile
	if profile != nil {
		p = *profile
	}
	if prefs.MinAge > 0 && p.Age < prefs.MinAge {
		return false
	}
	if prefs.MaxAge > 0 && p.Age > prefs.MaxAge {
		return false
	}
	if g := strings.TrimSpace(prefs.PreferredGender); g != "" && !strings.EqualFold(g, "any") &&
		!strings.EqualFold(g, strings.TrimSpace(p.Gender)) {
		return false
	}
	return true
}

func clampScore(n int) int {
	return max(0, min(100, n))
}

// Package search provides a deterministic, concurrency-safe in-memory index
// over restaurant profiles. An Index is immutable after construction.
//
// Each profile is indexed by the tokens of its name, cuisine and address.
// Free-text queries are scored with Jaccard similarity between the query
// token set Q and the profile token set P: score = |Q ∩ P| / |Q ∪ P|.
// Cuisine and price filters are applied before scoring. Ties are broken by
// rating (higher first), then name, then ref, so results are stable.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tbourn/table-for-two/internal/domain"
)

// DefaultLimit caps results when Query.Limit is zero.
const DefaultLimit = 10

// Result is a ranked profile with its similarity score. Score is 0 for
// filter-only queries.
type Result struct {
	Profile domain.RestaurantProfile
	Score   float64
}

// Query selects and ranks profiles. Empty Text lists every profile that
// passes the filters, best rated first.
type Query struct {
	Text     string
	Cuisine  string // exact, case-insensitive; empty matches all
	MaxPrice int    // 1..4; 0 disables. Profiles with unknown price always pass
	Limit    int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		stopwords: toSet([]string{"a", "an", "and", "at", "in", "of", "the"}),
	}
}

// WithStopwords replaces the default stop words. An empty list disables
// stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) { c.stopwords = toSet(words) }
}

// WithMaxDocs indexes at most n profiles.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	profile domain.RestaurantProfile
	tokens  map[string]struct{}
}

// Index ranks restaurant profiles. The zero value is an empty index.
type Index struct {
	cfg  config
	docs []doc
}

// New builds an index over profiles. Profiles without a name are skipped.
func New(profiles []domain.RestaurantProfile, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		toks := tokenize(strings.Join([]string{p.Name, p.Cuisine, p.Address}, " "), cfg.stopwords)
		docs = append(docs, doc{profile: p, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &Index{cfg: cfg, docs: docs}
}

// Len reports how many profiles are indexed.
func (i *Index) Len() int { return len(i.docs) }

// Search returns up to q.Limit profiles matching q.
func (i *Index) Search(q Query) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var qTokens map[string]struct{}
	if strings.TrimSpace(q.Text) != "" {
		qTokens = tokenize(q.Text, i.cfg.stopwords)
		if len(qTokens) == 0 {
			// only stop words or punctuation
			return nil
		}
	}
	cuisine := strings.TrimSpace(q.Cuisine)

	buf := make([]Result, 0, min(limit*4, len(i.docs)))
	for _, d := range i.docs {
		if cuisine != "" && !strings.EqualFold(d.profile.Cuisine, cuisine) {
			continue
		}
		if q.MaxPrice > 0 && d.profile.PriceTier > q.MaxPrice {
			continue
		}
		score := 0.0
		if qTokens != nil {
			over := overlap(qTokens, d.tokens)
			if over == 0 {
				continue
			}
			score = float64(over) / float64(len(qTokens)+len(d.tokens)-over)
		}
		buf = append(buf, Result{Profile: d.profile, Score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		pa, pb := buf[a].Profile, buf[b].Profile
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if pa.Rating != pb.Rating {
			return pa.Rating > pb.Rating
		}
		if pa.Name != pb.Name {
			return pa.Name < pb.Name
		}
		return pa.Ref.String() < pb.Ref.String()
	})

	if limit > len(buf) {
		limit = len(buf)
	}
	return buf[:limit]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/tbourn/table-for-two/internal/domain"
)

// Provider looks up an externally sourced restaurant by its source id.
// It is only consulted on a cache miss.
type Provider interface {
	Lookup(ctx context.Context, sourceID string) (*domain.RestaurantProfile, error)
}

// ErrProviderNotFound is returned when the provider has no such restaurant.
var ErrProviderNotFound = errors.New("provider: restaurant not found")

// knownCuisines are the category aliases the provider returns that map to a
// cuisine label. Anything else is labelled "International".
var knownCuisines = map[string]bool{
	"italian": true, "mexican": true, "chinese": true, "japanese": true, "indian": true,
	"thai": true, "french": true, "mediterranean": true, "american": true,
	"greek": true, "spanish": true, "korean": true, "vietnamese": true,
}

const defaultCuisine = "International"

// HTTPProvider calls a Yelp-style business API:
//
//	GET {BaseURL}/businesses/{id}
//	Authorization: Bearer {APIKey}
//
// Outbound calls are throttled by Limiter so a burst of cache misses cannot
// exhaust the upstream quota.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPProvider builds a provider with a client-side timeout and an outbound
// token bucket of rps requests/second (burst). rps <= 0 disables throttling.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, rps float64, burst int) *HTTPProvider {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
		Limiter: rate.NewLimiter(limit, burst),
	}
}

type providerBusiness struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Categories []struct {
		Alias string `json:"alias"`
	} `json:"categories"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Price  string  `json:"price"`
	Rating float64 `json:"rating"`
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, sourceID string) (*domain.RestaurantProfile, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider throttled: %w", err)
		}
	}

	apiURL := fmt.Sprintf("%s/businesses/%s", p.BaseURL, url.PathEscape(sourceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProviderNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var biz providerBusiness
	if err := json.NewDecoder(resp.Body).Decode(&biz); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	name := strings.TrimSpace(biz.Name)
	if name == "" {
		return nil, errors.New("provider response has no name")
	}

	return &domain.RestaurantProfile{
		Ref:       domain.External(sourceID),
		Name:      name,
		Cuisine:   cuisineLabel(biz),
		Address:   strings.Join(biz.Location.DisplayAddress, ", "),
		PriceTier: priceTier(biz.Price),
		Rating:    biz.Rating,
		Source:    domain.SourceProvider,
	}, nil
}

// cuisineLabel returns the first known category alias, title-cased.
func cuisineLabel(biz providerBusiness) string {
	for _, c := range biz.Categories {
		alias := strings.ToLower(strings.TrimSpace(c.Alias))
		if knownCuisines[alias] {
			// Casers are stateful; one per call.
			return cases.Title(language.English).String(alias)
		}
	}
	return defaultCuisine
}

// priceTier maps "$".."$$$$" to 1..4; anything missing counts as 1.
func priceTier(price string) int {
	n := strings.Count(price, "$")
	switch {
	case n < 1:
		return 1
	case n > 4:
		return 4
	}
	return n
}

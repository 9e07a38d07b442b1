package restaurant

import "github.com/prometheus/client_golang/prometheus"

// Resolution tiers, used as the "tier" label.
const (
	tierCatalog     = "catalog"
	tierNotFound    = "not_found"
	tierCache       = "cache"
	tierProvider    = "provider"
	tierSeed        = "seed"
	tierPlaceholder = "placeholder"
)

var resolutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tft_restaurant_resolutions_total",
		Help: "Restaurant reference resolutions by the tier that produced the answer.",
	},
	[]string{"tier"},
)

func init() {
	prometheus.MustRegister(resolutions)
}

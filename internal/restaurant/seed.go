package restaurant

import "github.com/tbourn/table-for-two/internal/domain"

// DefaultSeed is the built-in table of well-known external restaurants used
// when the provider is unreachable (offline and demo operation).
func DefaultSeed() map[string]domain.RestaurantProfile {
	seed := map[string]domain.RestaurantProfile{
		"nyc-carbone":        {Name: "Carbone", Cuisine: "Italian", Address: "181 Thompson St, New York, NY 10012", PriceTier: 4, Rating: 4.6},
		"nyc-le-bernardin":   {Name: "Le Bernardin", Cuisine: "French", Address: "155 W 51st St, New York, NY 10019", PriceTier: 4, Rating: 4.8},
		"nyc-sushi-nakazawa": {Name: "Sushi Nakazawa", Cuisine: "Japanese", Address: "23 Commerce St, New York, NY 10014", PriceTier: 4, Rating: 4.7},
		"nyc-los-tacos-no-1": {Name: "Los Tacos No. 1", Cuisine: "Mexican", Address: "75 9th Ave, New York, NY 10011", PriceTier: 1, Rating: 4.7},
		"nyc-joe-shanghai":   {Name: "Joe's Shanghai", Cuisine: "Chinese", Address: "46 Bowery, New York, NY 10013", PriceTier: 2, Rating: 4.2},
		"nyc-dhamaka":        {Name: "Dhamaka", Cuisine: "Indian", Address: "119 Delancey St, New York, NY 10002", PriceTier: 3, Rating: 4.5},
	}
	for id, p := range seed {
		p.Ref = domain.External(id)
		p.Source = domain.SourceSeed
		seed[id] = p
	}
	return seed
}

// README: Two-phase driver search: regional offers first, expanded fallback when none serve the route.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/transport"
)

const (
	MaxDriverSuggestions    = 10
	MaxSupplementaryDrivers = 5
)

type SearchKind string

const (
	SearchRegional SearchKind = "regional"
	SearchExpanded SearchKind = "expanded"
)

type OfferCandidate struct {
	Offer  *transport.Offer `json:"offer,omitempty"`
	Driver *actor.Actor     `json:"driver,omitempty"`
}

// DriverSearch is either a regional result, possibly with supplementary
// out-of-region offers, or an expanded fallback with Reason set.
type DriverSearch struct {
	Kind             SearchKind       `json:"kind"`
	RequiredCapacity float64          `json:"required_capacity"`
	Offers           []OfferCandidate `json:"offers,omitempty"`
	Reason           string           `json:"reason"`
	Supplementary    []OfferCandidate `json:"supplementary,omitempty"`
}

// RequiredCapacity is the smaller of the two remaining quantities.
func RequiredCapacity(l *listing.Listing, d *demand.Demand) float64 {
	return math.Min(l.Remaining(), d.Remaining())
}

// SuggestDrivers ranks offers that can carry required kg between l and d at
// now. A non-positive required falls back to RequiredCapacity.
func SuggestDrivers(l *listing.Listing, d *demand.Demand, required float64, pool []OfferCandidate, now time.Time) DriverSearch {
	if required <= 0 {
		required = RequiredCapacity(l, d)
	}
	var regional, other []OfferCandidate
	for _, c := range pool {
		o := c.Offer
		if o == nil || !o.AvailableAt(now) || o.CapacityKg < required {
			continue
		}
		if o.Serves(l.Location.County) || o.Serves(d.Location.County) {
			regional = append(regional, c)
		} else {
			other = append(other, c)
		}
	}
	sortOffers(regional)
	sortOffers(other)

	if len(regional) == 0 {
		return DriverSearch{
			Kind:             SearchExpanded,
			RequiredCapacity: required,
			Offers:           capOffers(other, MaxDriverSuggestions),
			Reason: fmt.Sprintf("no transport offers serve %s or %s; showing offers from other regions",
				l.Location.County, d.Location.County),
		}
	}
	return DriverSearch{
		Kind:             SearchRegional,
		RequiredCapacity: required,
		Offers:           capOffers(regional, MaxDriverSuggestions),
		Supplementary:    capOffers(other, MaxSupplementaryDrivers),
	}
}

// sortOffers orders by driver rating desc, then price per km asc, then id.
func sortOffers(cs []OfferCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		ri, rj := driverRating(cs[i].Driver), driverRating(cs[j].Driver)
		if ri != rj {
			return ri > rj
		}
		if c := cs[i].Offer.PricePerKm.Cmp(cs[j].Offer.PricePerKm); c != 0 {
			return c < 0
		}
		return cs[i].Offer.ID < cs[j].Offer.ID
	})
}

func driverRating(a *actor.Actor) float64 {
	if a == nil {
		return 0
	}
	return a.RatingAverage
}

func capOffers(cs []OfferCandidate, n int) []OfferCandidate {
	if len(cs) > n {
		return cs[:n]
	}
	return cs
}

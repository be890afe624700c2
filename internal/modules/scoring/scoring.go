// README: Candidate scoring engine. Pure functions over pools loaded by the match service.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/types"
)

// Point values are part of the client-visible contract.
const (
	PointsCrop       = 10
	PointsCounty     = 5
	PointsUrgent     = 5
	PointsHigh       = 3
	PointsPrice      = 3
	PointsVerified   = 2
	PointsGoodRating = 2
	PointsPromoted   = 1
	GoodRatingCutoff = 4.0
)

type ListingCandidate struct {
	Listing *listing.Listing `json:"listing,omitempty"`
	Owner   *actor.Actor     `json:"owner,omitempty"`
}

type DemandCandidate struct {
	Demand *demand.Demand `json:"demand,omitempty"`
	Owner  *actor.Actor   `json:"owner,omitempty"`
}

type ScoredListing struct {
	ListingCandidate
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

type ScoredDemand struct {
	DemandCandidate
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// Filter narrows a pool before scoring. County is optional.
type Filter struct {
	County string
	Limit  int
}

// PriceCompatible holds when the listing price does not exceed the demand's
// offer, the listing is negotiable, or either side has no price.
func PriceCompatible(l *listing.Listing, d *demand.Demand) bool {
	if l.Negotiable || l.Price == nil || d.PriceOffer == nil {
		return true
	}
	if l.Currency != "" && d.Currency != "" && !strings.EqualFold(l.Currency, d.Currency) {
		return false
	}
	return l.Price.LessThanOrEqual(*d.PriceOffer)
}

// Compatible is the pool precondition shared by both ranking directions.
func Compatible(l *listing.Listing, d *demand.Demand) bool {
	return types.CropMatches(l.Crop, d.Crop) &&
		l.Remaining() >= d.Remaining() &&
		PriceCompatible(l, d)
}

func inCounty(f Filter, county string) bool {
	return strings.TrimSpace(f.County) == "" || types.SameCounty(f.County, county)
}

// ScoreListing scores a listing as a candidate for d. A crop mismatch scores zero.
func ScoreListing(d *demand.Demand, c ListingCandidate) (int, []string) {
	l := c.Listing
	if !types.CropMatches(l.Crop, d.Crop) {
		return 0, nil
	}
	score := PointsCrop
	reasons := []string{fmt.Sprintf("crop match: %s", types.NormalizeCrop(l.Crop))}
	if types.SameCounty(l.Location.County, d.Location.County) {
		score += PointsCounty
		reasons = append(reasons, fmt.Sprintf("same county: %s", l.Location.County))
	}
	switch d.Urgency {
	case demand.UrgencyUrgent:
		score += PointsUrgent
		reasons = append(reasons, "urgent demand")
	case demand.UrgencyHigh:
		score += PointsHigh
		reasons = append(reasons, "high urgency demand")
	}
	if PriceCompatible(l, d) {
		score += PointsPrice
		reasons = append(reasons, priceReason(l, d))
	}
	s, r := ownerPoints(c.Owner, "farmer")
	score += s
	reasons = append(reasons, r...)
	if l.Promoted {
		score += PointsPromoted
		reasons = append(reasons, "promoted listing")
	}
	return score, reasons
}

// ScoreDemand scores a demand as a candidate for l. Urgent demands earn no
// bonus in this direction; high urgency does.
func ScoreDemand(l *listing.Listing, c DemandCandidate) (int, []string) {
	d := c.Demand
	if !types.CropMatches(l.Crop, d.Crop) {
		return 0, nil
	}
	score := PointsCrop
	reasons := []string{fmt.Sprintf("crop match: %s", types.NormalizeCrop(d.Crop))}
	if types.SameCounty(l.Location.County, d.Location.County) {
		score += PointsCounty
		reasons = append(reasons, fmt.Sprintf("same county: %s", d.Location.County))
	}
	if d.Urgency == demand.UrgencyHigh {
		score += PointsHigh
		reasons = append(reasons, "high urgency demand")
	}
	if PriceCompatible(l, d) {
		score += PointsPrice
		reasons = append(reasons, priceReason(l, d))
	}
	s, r := ownerPoints(c.Owner, "buyer")
	score += s
	reasons = append(reasons, r...)
	return score, reasons
}

func priceReason(l *listing.Listing, d *demand.Demand) string {
	switch {
	case l.Negotiable:
		return "price negotiable"
	case l.Price == nil || d.PriceOffer == nil:
		return "price open"
	default:
		return fmt.Sprintf("price compatible: %s <= %s", l.Price.String(), d.PriceOffer.String())
	}
}

func ownerPoints(owner *actor.Actor, label string) (int, []string) {
	if owner == nil {
		return 0, nil
	}
	var score int
	var reasons []string
	if owner.Verified() {
		score += PointsVerified
		reasons = append(reasons, "verified "+label)
	}
	if owner.RatingCount > 0 && owner.RatingAverage >= GoodRatingCutoff {
		score += PointsGoodRating
		reasons = append(reasons, fmt.Sprintf("%s rated %.1f", label, owner.RatingAverage))
	}
	return score, reasons
}

// PresortListings orders promoted first, then newest, then by id.
func PresortListings(pool []ListingCandidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i].Listing, pool[j].Listing
		if a.Promoted != b.Promoted {
			return a.Promoted
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// PresortDemands orders newest first, then by id.
func PresortDemands(pool []DemandCandidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i].Demand, pool[j].Demand
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// RankListings filters pool down to listings that can serve d and orders them
// by score, keeping presort order among equal scores.
func RankListings(d *demand.Demand, pool []ListingCandidate, f Filter) []ScoredListing {
	eligible := make([]ListingCandidate, 0, len(pool))
	for _, c := range pool {
		l := c.Listing
		if l == nil || !l.Open() || l.FarmerID == d.BuyerID {
			continue
		}
		if !Compatible(l, d) || !inCounty(f, l.Location.County) {
			continue
		}
		eligible = append(eligible, c)
	}
	PresortListings(eligible)
	out := make([]ScoredListing, 0, len(eligible))
	for _, c := range eligible {
		score, reasons := ScoreListing(d, c)
		out = append(out, ScoredListing{ListingCandidate: c, Score: score, Reasons: reasons})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// RankDemands is the reverse direction: demands a listing can serve.
func RankDemands(l *listing.Listing, pool []DemandCandidate, f Filter) []ScoredDemand {
	eligible := make([]DemandCandidate, 0, len(pool))
	for _, c := range pool {
		d := c.Demand
		if d == nil || !d.Open() || d.BuyerID == l.FarmerID {
			continue
		}
		if !Compatible(l, d) || !inCounty(f, d.Location.County) {
			continue
		}
		eligible = append(eligible, c)
	}
	PresortDemands(eligible)
	out := make([]ScoredDemand, 0, len(eligible))
	for _, c := range eligible {
		score, reasons := ScoreDemand(l, c)
		out = append(out, ScoredDemand{DemandCandidate: c, Score: score, Reasons: reasons})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

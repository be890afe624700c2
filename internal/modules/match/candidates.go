// README: Candidate queries: load pools from the stores and hand them to the scoring engine.
package match

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/scoring"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

const candidatePoolSize = 500

type CandidateQuery struct {
	CallerID types.ID
	TargetID types.ID
	County   string
	Limit    int
}

// ListingCandidates ranks open listings for a demand.
func (s *Service) ListingCandidates(ctx context.Context, q CandidateQuery) ([]scoring.ScoredListing, error) {
	d, err := s.demands.Get(ctx, q.TargetID)
	if err != nil {
		return nil, err
	}
	if err := s.ownerOrAdmin(ctx, q.CallerID, d.BuyerID); err != nil {
		return nil, err
	}
	ls, err := s.listings.List(ctx, listing.Filter{Crop: d.Crop, Status: listing.StatusAvailable, Limit: candidatePoolSize})
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.FarmerID)
	}
	owners, err := s.actors.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	pool := make([]scoring.ListingCandidate, 0, len(ls))
	for _, l := range ls {
		pool = append(pool, scoring.ListingCandidate{Listing: l, Owner: owners[l.FarmerID]})
	}
	return scoring.RankListings(d, pool, scoring.Filter{County: q.County, Limit: q.Limit}), nil
}

// DemandCandidates ranks open demands a listing can serve.
func (s *Service) DemandCandidates(ctx context.Context, q CandidateQuery) ([]scoring.ScoredDemand, error) {
	l, err := s.listings.Get(ctx, q.TargetID)
	if err != nil {
		return nil, err
	}
	if err := s.ownerOrAdmin(ctx, q.CallerID, l.FarmerID); err != nil {
		return nil, err
	}
	ds, err := s.demands.List(ctx, demand.Filter{Crop: l.Crop, Status: demand.StatusOpen, Limit: candidatePoolSize})
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.BuyerID)
	}
	owners, err := s.actors.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	pool := make([]scoring.DemandCandidate, 0, len(ds))
	for _, d := range ds {
		pool = append(pool, scoring.DemandCandidate{Demand: d, Owner: owners[d.BuyerID]})
	}
	return scoring.RankDemands(l, pool, scoring.Filter{County: q.County, Limit: q.Limit}), nil
}

// DriverQuote is a suggested offer with the trip cost estimate when the
// route distance is known.
type DriverQuote struct {
	scoring.OfferCandidate
	DistanceKm    *float64     `json:"distance_km,omitempty"`
	EstimatedCost *types.Money `json:"estimated_cost,omitempty"`
}

type DriverSuggestions struct {
	Kind             scoring.SearchKind `json:"kind"`
	RequiredCapacity float64            `json:"required_capacity"`
	Reason           string             `json:"reason"`
	Offers           []DriverQuote      `json:"offers,omitempty"`
	Supplementary    []DriverQuote      `json:"supplementary,omitempty"`
}

func (s *Service) SuggestDrivers(ctx context.Context, callerID, matchID types.ID) (*DriverSuggestions, error) {
	m, err := s.Get(ctx, callerID, matchID)
	if err != nil {
		return nil, err
	}
	l, d, err := s.sides(ctx, m)
	if err != nil {
		return nil, err
	}
	offers, err := s.offers.List(ctx, transport.Filter{Status: transport.StatusAvailable, Limit: candidatePoolSize})
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.DriverID)
	}
	drivers, err := s.actors.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	pool := make([]scoring.OfferCandidate, 0, len(offers))
	for _, o := range offers {
		if m.IsParty(o.DriverID) {
			continue
		}
		pool = append(pool, scoring.OfferCandidate{Offer: o, Driver: drivers[o.DriverID]})
	}
	search := scoring.SuggestDrivers(l, d, m.AgreedQuantity, pool, s.now())

	var km *float64
	if s.distance != nil {
		if v, err := s.distance.DistanceKm(ctx, l.Location, d.Location); err != nil {
			log.Printf("match %s: distance estimate: %v", m.ID, err)
		} else {
			km = &v
		}
	}
	return &DriverSuggestions{
		Kind:             search.Kind,
		RequiredCapacity: search.RequiredCapacity,
		Reason:           search.Reason,
		Offers:           quote(search.Offers, km),
		Supplementary:    quote(search.Supplementary, km),
	}, nil
}

func quote(cs []scoring.OfferCandidate, km *float64) []DriverQuote {
	out := make([]DriverQuote, 0, len(cs))
	for _, c := range cs {
		q := DriverQuote{OfferCandidate: c, DistanceKm: km}
		if km != nil {
			cost := types.NewMoney(c.Offer.PricePerKm.Mul(decimal.NewFromFloat(*km)).Round(2), c.Offer.Currency)
			q.EstimatedCost = &cost
		}
		out = append(out, q)
	}
	return out
}

func (s *Service) ownerOrAdmin(ctx context.Context, callerID, ownerID types.ID) error {
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.ID != ownerID && !actor.HasCapability(caller, actor.CapManageAnyEntity) {
		return fmt.Errorf("%w: candidates are visible to the owner only", types.ErrUnauthorized)
	}
	return nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

const quantityEpsilon = 1e-9

type Matches struct {
	db *DB
}

func (s *Matches) Create(_ context.Context, m *match.Match, ev *match.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := pair{listing: m.ListingID, demand: m.DemandID}
	if _, ok := s.db.pairs[key]; ok {
		return fmt.Errorf("%w: a match already exists for listing %s and demand %s", types.ErrConflict, m.ListingID, m.DemandID)
	}
	s.db.matches[m.ID] = copyMatch(m)
	s.db.pairs[key] = m.ID
	s.db.appendEvent(ev)
	return nil
}

func (s *Matches) Get(_ context.Context, id types.ID) (*match.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: match %s", types.ErrNotFound, id)
	}
	return copyMatch(m), nil
}

// Apply checks every precondition before touching any state, so a failed
// change leaves nothing behind.
func (s *Matches) Apply(_ context.Context, ch *match.Change) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m := ch.Match
	cur, ok := s.db.matches[m.ID]
	if !ok {
		return fmt.Errorf("%w: match %s", types.ErrNotFound, m.ID)
	}
	if cur.Version != ch.ExpectedVersion {
		return fmt.Errorf("%w: match %s changed since version %d", types.ErrConflict, m.ID, ch.ExpectedVersion)
	}
	var l *listing.Listing
	var d *demand.Demand
	if st := ch.Settlement; st != nil && st.Quantity > 0 {
		if l, ok = s.db.listings[st.ListingID]; !ok {
			return fmt.Errorf("%w: listing %s", types.ErrNotFound, st.ListingID)
		}
		if d, ok = s.db.demands[st.DemandID]; !ok {
			return fmt.Errorf("%w: demand %s", types.ErrNotFound, st.DemandID)
		}
		if l.QuantityFulfilled+st.Quantity > l.Quantity+quantityEpsilon {
			return fmt.Errorf("%w: listing %s cannot absorb %.2f", types.ErrConflict, l.ID, st.Quantity)
		}
		if d.QuantityFulfilled+st.Quantity > d.Quantity+quantityEpsilon {
			return fmt.Errorf("%w: demand %s cannot absorb %.2f", types.ErrConflict, d.ID, st.Quantity)
		}
	}
	for _, oc := range ch.Offers {
		o, ok := s.db.offers[oc.OfferID]
		if !ok {
			return fmt.Errorf("%w: transport offer %s", types.ErrNotFound, oc.OfferID)
		}
		if !statusIn(o.Status, oc.From) {
			return fmt.Errorf("%w: transport offer %s is not in %v", types.ErrConflict, o.ID, oc.From)
		}
	}

	s.db.matches[m.ID] = copyMatch(m)
	if l != nil {
		qty := ch.Settlement.Quantity
		l.QuantityFulfilled += qty
		if l.QuantityFulfilled >= l.Quantity-quantityEpsilon {
			l.Status = listing.StatusSold
		}
		l.UpdatedAt = m.UpdatedAt
		d.QuantityFulfilled += qty
		if d.QuantityFulfilled >= d.Quantity-quantityEpsilon {
			d.Status = demand.StatusFulfilled
		}
		d.UpdatedAt = m.UpdatedAt
	}
	for _, oc := range ch.Offers {
		o := s.db.offers[oc.OfferID]
		o.Status = oc.To
		o.UpdatedAt = m.UpdatedAt
	}
	s.db.appendEvent(&ch.Event)
	return nil
}

func (s *Matches) Events(_ context.Context, matchID types.ID) ([]match.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]match.Event(nil), s.db.events[matchID]...), nil
}

func (s *Matches) List(_ context.Context, f match.Filter) ([]*match.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*match.Match
	for _, m := range s.db.matches {
		if f.ParticipantID != "" && m.FarmerID != f.ParticipantID && m.BuyerID != f.ParticipantID && m.DriverID != f.ParticipantID {
			continue
		}
		if f.ListingID != "" && m.ListingID != f.ListingID {
			continue
		}
		if f.DemandID != "" && m.DemandID != f.DemandID {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, copyMatch(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, f.Limit), nil
}

func (s *Matches) ListExpirable(_ context.Context, now time.Time, n int) ([]*match.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*match.Match
	for _, m := range s.db.matches {
		if !match.IsTerminal(m.Status) && m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(*out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, n), nil
}

// appendEvent assigns the next sequence number; callers hold db.mu.
func (db *DB) appendEvent(ev *match.Event) {
	db.eventSeq++
	ev.Seq = db.eventSeq
	db.events[ev.MatchID] = append(db.events[ev.MatchID], *ev)
}

func statusIn(st transport.Status, set []transport.Status) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

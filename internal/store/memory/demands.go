package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agrimatch/internal/modules/demand"
	"agrimatch/internal/types"
)

type Demands struct {
	db *DB
}

func (s *Demands) Create(_ context.Context, d *demand.Demand) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.demands[d.ID]; ok {
		return fmt.Errorf("%w: demand %s exists", types.ErrConflict, d.ID)
	}
	s.db.demands[d.ID] = copyDemand(d)
	return nil
}

func (s *Demands) Get(_ context.Context, id types.ID) (*demand.Demand, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	d, ok := s.db.demands[id]
	if !ok {
		return nil, fmt.Errorf("%w: demand %s", types.ErrNotFound, id)
	}
	return copyDemand(d), nil
}

func (s *Demands) UpdateMetadata(_ context.Context, d *demand.Demand) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.demands[d.ID]
	if !ok {
		return fmt.Errorf("%w: demand %s", types.ErrNotFound, d.ID)
	}
	if cur.Status != demand.StatusOpen {
		return fmt.Errorf("%w: demand %s is no longer open", types.ErrInvalidState, d.ID)
	}
	cur.PriceOffer = d.PriceOffer
	cur.Urgency = d.Urgency
	cur.Description = d.Description
	cur.ExpiresAt = d.ExpiresAt
	cur.UpdatedAt = d.UpdatedAt
	return nil
}

func (s *Demands) Cancel(_ context.Context, id types.ID, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.demands[id]
	if !ok {
		return fmt.Errorf("%w: demand %s", types.ErrNotFound, id)
	}
	if cur.Status != demand.StatusOpen {
		return fmt.Errorf("%w: demand %s is no longer open", types.ErrInvalidState, id)
	}
	cur.Status = demand.StatusCancelled
	cur.UpdatedAt = now
	return nil
}

func (s *Demands) Delete(_ context.Context, id types.ID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.demands[id]; !ok {
		return fmt.Errorf("%w: demand %s", types.ErrNotFound, id)
	}
	for p := range s.db.pairs {
		if p.demand == id {
			return fmt.Errorf("%w: demand %s is referenced by a match", types.ErrConflict, id)
		}
	}
	delete(s.db.demands, id)
	return nil
}

func (s *Demands) List(_ context.Context, f demand.Filter) ([]*demand.Demand, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*demand.Demand
	for _, d := range s.db.demands {
		if f.Crop != "" && !types.CropMatches(f.Crop, d.Crop) {
			continue
		}
		if f.County != "" && !types.SameCounty(f.County, d.Location.County) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Urgency != "" && d.Urgency != f.Urgency {
			continue
		}
		if f.BuyerID != "" && d.BuyerID != f.BuyerID {
			continue
		}
		if !inRange(d.CreatedAt, f.Since, f.Until) {
			continue
		}
		out = append(out, copyDemand(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, f.Limit), nil
}

// ExpireDue cancels open demands past their expiry.
func (s *Demands) ExpireDue(_ context.Context, now time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, d := range s.db.demands {
		if d.Status == demand.StatusOpen && d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			d.Status = demand.StatusCancelled
			d.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

type Offers struct {
	db *DB
}

func (s *Offers) Create(_ context.Context, o *transport.Offer) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.offers[o.ID]; ok {
		return fmt.Errorf("%w: transport offer %s exists", types.ErrConflict, o.ID)
	}
	s.db.offers[o.ID] = copyOffer(o)
	return nil
}

func (s *Offers) Get(_ context.Context, id types.ID) (*transport.Offer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transport offer %s", types.ErrNotFound, id)
	}
	return copyOffer(o), nil
}

func (s *Offers) SetStatus(_ context.Context, id types.ID, status transport.Status, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.offers[id]
	if !ok {
		return fmt.Errorf("%w: transport offer %s", types.ErrNotFound, id)
	}
	if o.Status != transport.StatusAvailable && o.Status != transport.StatusUnavailable {
		return fmt.Errorf("%w: transport offer %s is committed to a match", types.ErrInvalidState, id)
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

func (s *Offers) List(_ context.Context, f transport.Filter) ([]*transport.Offer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*transport.Offer
	for _, o := range s.db.offers {
		if f.DriverID != "" && o.DriverID != f.DriverID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.County != "" && !o.Serves(f.County) {
			continue
		}
		out = append(out, copyOffer(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, f.Limit), nil
}

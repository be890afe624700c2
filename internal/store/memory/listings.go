package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agrimatch/internal/modules/listing"
	"agrimatch/internal/types"
)

type Listings struct {
	db *DB
}

func (s *Listings) Create(_ context.Context, l *listing.Listing) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.listings[l.ID]; ok {
		return fmt.Errorf("%w: listing %s exists", types.ErrConflict, l.ID)
	}
	s.db.listings[l.ID] = copyListing(l)
	return nil
}

func (s *Listings) Get(_ context.Context, id types.ID) (*listing.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s", types.ErrNotFound, id)
	}
	return copyListing(l), nil
}

func (s *Listings) UpdateMetadata(_ context.Context, l *listing.Listing) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.listings[l.ID]
	if !ok {
		return fmt.Errorf("%w: listing %s", types.ErrNotFound, l.ID)
	}
	if cur.Status != listing.StatusAvailable {
		return fmt.Errorf("%w: listing %s is no longer available", types.ErrInvalidState, l.ID)
	}
	cur.Price = l.Price
	cur.Negotiable = l.Negotiable
	cur.Description = l.Description
	cur.Promoted = l.Promoted
	cur.ExpiresAt = l.ExpiresAt
	cur.UpdatedAt = l.UpdatedAt
	return nil
}

func (s *Listings) Delete(_ context.Context, id types.ID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.listings[id]; !ok {
		return fmt.Errorf("%w: listing %s", types.ErrNotFound, id)
	}
	for p := range s.db.pairs {
		if p.listing == id {
			return fmt.Errorf("%w: listing %s is referenced by a match", types.ErrConflict, id)
		}
	}
	delete(s.db.listings, id)
	return nil
}

func (s *Listings) List(_ context.Context, f listing.Filter) ([]*listing.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*listing.Listing
	for _, l := range s.db.listings {
		if f.Crop != "" && !types.CropMatches(f.Crop, l.Crop) {
			continue
		}
		if f.County != "" && !types.SameCounty(f.County, l.Location.County) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.FarmerID != "" && l.FarmerID != f.FarmerID {
			continue
		}
		if !inRange(l.CreatedAt, f.Since, f.Until) {
			continue
		}
		out = append(out, copyListing(l))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Promoted != b.Promoted {
			return a.Promoted
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return limit(out, f.Limit), nil
}

func (s *Listings) ExpireDue(_ context.Context, now time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, l := range s.db.listings {
		if l.Status == listing.StatusAvailable && l.ExpiresAt != nil && l.ExpiresAt.Before(now) {
			l.Status = listing.StatusExpired
			l.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func inRange(t time.Time, since, until *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if until != nil && !t.Before(*until) {
		return false
	}
	return true
}

func limit[T any](in []T, n int) []T {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/types"
)

type Reviews struct {
	db *DB
}

func (s *Reviews) Create(_ context.Context, r *review.Review, ratedFarmer bool, ev *match.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := reviewKey{match: r.MatchID, reviewer: r.ReviewerID}
	if s.db.reviewed[key] {
		return fmt.Errorf("%w: %s already reviewed match %s", types.ErrConflict, r.ReviewerID, r.MatchID)
	}
	m, ok := s.db.matches[r.MatchID]
	if !ok {
		return fmt.Errorf("%w: match %s", types.ErrNotFound, r.MatchID)
	}
	side := &m.BuyerRating
	if ratedFarmer {
		side = &m.FarmerRating
	}
	if m.Status != match.StatusCompleted || *side != nil {
		return fmt.Errorf("%w: match %s already rated", types.ErrConflict, r.MatchID)
	}
	reviewee, ok := s.db.actors[r.RevieweeID]
	if !ok {
		return fmt.Errorf("%w: actor %s", types.ErrNotFound, r.RevieweeID)
	}

	rating := r.Rating
	*side = &rating
	m.Version++
	m.UpdatedAt = r.CreatedAt
	reviewee.RatingAverage, reviewee.RatingCount = actor.NextRating(reviewee.RatingAverage, reviewee.RatingCount, r.Rating)
	c := *r
	s.db.reviews = append(s.db.reviews, &c)
	s.db.reviewed[key] = true
	s.db.appendEvent(ev)
	return nil
}

func (s *Reviews) ListForActor(_ context.Context, revieweeID types.ID, n int) ([]*review.Review, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*review.Review
	for _, r := range s.db.reviews {
		if r.RevieweeID == revieweeID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if n <= 0 {
		n = 50
	}
	return limit(out, n), nil
}

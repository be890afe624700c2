// README: Review service: one review per side of a completed match.
package review

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

type ReviewStore interface {
	Create(ctx context.Context, r *Review, ratedFarmer bool, ev *match.Event) error
	ListForActor(ctx context.Context, revieweeID types.ID, limit int) ([]*Review, error)
}

type MatchReader interface {
	Get(ctx context.Context, id types.ID) (*match.Match, error)
}

type Service struct {
	store   ReviewStore
	matches MatchReader
	pub     fanout.Publisher
	now     func() time.Time
}

func NewService(store ReviewStore, matches MatchReader, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{store: store, matches: matches, pub: pub, now: time.Now}
}

type CreateCommand struct {
	MatchID    types.ID `validate:"required"`
	ReviewerID types.ID `validate:"required"`
	Rating     int      `validate:"min=1,max=5"`
	Comment    string   `validate:"max=1000"`
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Review, error) {
	cmd.Comment = strings.TrimSpace(cmd.Comment)
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	m, err := s.matches.Get(ctx, cmd.MatchID)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(cmd.ReviewerID) {
		return nil, fmt.Errorf("%w: only the farmer or buyer may review match %s", types.ErrUnauthorized, m.ID)
	}
	if m.Status != match.StatusCompleted {
		return nil, fmt.Errorf("%w: match %s is %s, not completed", types.ErrInvalidState, m.ID, m.Status)
	}
	reviewee := m.OtherParty(cmd.ReviewerID)
	now := s.now()
	r := &Review{
		ID:         types.NewID(),
		MatchID:    m.ID,
		ReviewerID: cmd.ReviewerID,
		RevieweeID: reviewee,
		Rating:     cmd.Rating,
		Comment:    cmd.Comment,
		CreatedAt:  now,
	}
	ev := match.NewEvent(m.ID, cmd.ReviewerID, "", match.Rated{ReviewID: r.ID, RevieweeID: reviewee, Rating: r.Rating}, now)
	if err := s.store.Create(ctx, r, reviewee == m.FarmerID, &ev); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, fanout.ActorChannel(reviewee), "rated", r); err != nil {
		log.Printf("review %s: publish: %v", r.ID, err)
	}
	return r, nil
}

func (s *Service) ListForActor(ctx context.Context, revieweeID types.ID, limit int) ([]*Review, error) {
	return s.store.ListForActor(ctx, revieweeID, limit)
}

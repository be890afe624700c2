package review_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/store/memory"
	"agrimatch/internal/types"
)

func setup(t *testing.T, status match.Status) (*memory.DB, *review.Service, *match.Match) {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	farmer := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleFarmer}, RatingAverage: 4, RatingCount: 3}
	buyer := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleBuyer}}
	db.Actors().Put(farmer)
	db.Actors().Put(buyer)
	now := time.Now()
	m := &match.Match{
		ID: types.NewID(), ListingID: types.NewID(), DemandID: types.NewID(),
		FarmerID: farmer.ID, BuyerID: buyer.ID, InitiatedBy: buyer.ID,
		Status: status, Version: 6, CreatedAt: now, UpdatedAt: now,
	}
	ev := match.NewEvent(m.ID, buyer.ID, "", match.Created{}, now)
	if err := db.Matches().Create(ctx, m, &ev); err != nil {
		t.Fatalf("create match: %v", err)
	}
	return db, review.NewService(db.Reviews(), db.Matches(), fanout.NewRecorder()), m
}

func TestReviewUpdatesRatings(t *testing.T) {
	ctx := context.Background()
	db, svc, m := setup(t, match.StatusCompleted)

	r, err := svc.Create(ctx, review.CreateCommand{MatchID: m.ID, ReviewerID: m.BuyerID, Rating: 2, Comment: " late "})
	if err != nil {
		t.Fatalf("buyer review: %v", err)
	}
	if r.RevieweeID != m.FarmerID || r.Comment != "late" {
		t.Fatalf("unexpected review %+v", r)
	}
	farmer, _ := db.Actors().Get(ctx, m.FarmerID)
	if farmer.RatingCount != 4 || math.Abs(farmer.RatingAverage-3.5) > 1e-9 {
		t.Fatalf("expected farmer 3.5 over 4, got %.2f over %d", farmer.RatingAverage, farmer.RatingCount)
	}

	if _, err := svc.Create(ctx, review.CreateCommand{MatchID: m.ID, ReviewerID: m.FarmerID, Rating: 5}); err != nil {
		t.Fatalf("farmer review: %v", err)
	}
	buyer, _ := db.Actors().Get(ctx, m.BuyerID)
	if buyer.RatingCount != 1 || buyer.RatingAverage != 5 {
		t.Fatalf("expected buyer 5 over 1, got %.2f over %d", buyer.RatingAverage, buyer.RatingCount)
	}

	got, _ := db.Matches().Get(ctx, m.ID)
	if got.FarmerRating == nil || *got.FarmerRating != 2 || got.BuyerRating == nil || *got.BuyerRating != 5 {
		t.Fatalf("match should carry both ratings")
	}
	if got.Version != 8 {
		t.Fatalf("each rating should bump the version, got %d", got.Version)
	}
	list, err := svc.ListForActor(ctx, m.FarmerID, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 review for farmer, got %d err=%v", len(list), err)
	}
}

func TestReviewRules(t *testing.T) {
	ctx := context.Background()
	_, open, pending := setup(t, match.StatusInTransit)
	if _, err := open.Create(ctx, review.CreateCommand{MatchID: pending.ID, ReviewerID: pending.BuyerID, Rating: 4}); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("uncompleted match: expected invalid state, got %v", err)
	}

	_, svc, m := setup(t, match.StatusCompleted)
	cases := []struct {
		name string
		cmd  review.CreateCommand
		want error
	}{
		{"rating too low", review.CreateCommand{MatchID: m.ID, ReviewerID: m.BuyerID, Rating: 0}, types.ErrValidation},
		{"rating too high", review.CreateCommand{MatchID: m.ID, ReviewerID: m.BuyerID, Rating: 6}, types.ErrValidation},
		{"outsider", review.CreateCommand{MatchID: m.ID, ReviewerID: types.NewID(), Rating: 3}, types.ErrUnauthorized},
		{"unknown match", review.CreateCommand{MatchID: types.NewID(), ReviewerID: m.BuyerID, Rating: 3}, types.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConcurrentDuplicateReview(t *testing.T) {
	ctx := context.Background()
	db, svc, m := setup(t, match.StatusCompleted)

	const n = 6
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(ctx, review.CreateCommand{MatchID: m.ID, ReviewerID: m.BuyerID, Rating: 5})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
		} else if !errors.Is(err, types.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one review, got %d", success)
	}
	farmer, _ := db.Actors().Get(ctx, m.FarmerID)
	if farmer.RatingCount != 4 {
		t.Fatalf("rating must be folded in once, got count %d", farmer.RatingCount)
	}
}

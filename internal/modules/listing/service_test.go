package listing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/store/memory"
	"agrimatch/internal/types"
)

type env struct {
	ctx    context.Context
	svc    *listing.Service
	pub    *fanout.Recorder
	farmer *actor.Actor
	other  *actor.Actor
	admin  *actor.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := memory.New()
	e := &env{ctx: context.Background(), pub: fanout.NewRecorder()}
	mk := func(r actor.Role, v actor.Verification) *actor.Actor {
		a := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{r}, PrimaryRole: r, Verification: v}
		db.Actors().Put(a)
		return a
	}
	e.farmer = mk(actor.RoleFarmer, actor.VerificationApproved)
	e.other = mk(actor.RoleFarmer, actor.VerificationApproved)
	e.admin = mk(actor.RoleAdmin, actor.VerificationPending)
	e.svc = listing.NewService(db.Listings(), db.Actors(), e.pub)
	return e
}

func (e *env) create(t *testing.T, cmd listing.CreateCommand) *listing.Listing {
	t.Helper()
	if cmd.FarmerID == "" {
		cmd.FarmerID = e.farmer.ID
	}
	l, err := e.svc.Create(e.ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return l
}

func TestCreateListing(t *testing.T) {
	e := newEnv(t)
	price := decimal.RequireFromString("42.50")
	l := e.create(t, listing.CreateCommand{Crop: " Maize ", Quantity: 900, Price: &price, Location: types.Location{County: "Uasin Gishu"}})
	if l.Crop != "Maize" || l.Currency != types.DefaultCurrency || l.Status != listing.StatusAvailable {
		t.Fatalf("unexpected listing %+v", l)
	}
	if n := len(e.pub.On(fanout.TopicChannel("maize", "Uasin Gishu"))); n != 1 {
		t.Fatalf("expected listing_created on topic channel, got %d", n)
	}

	pending := &actor.Actor{ID: types.NewID(), Roles: []actor.Role{actor.RoleFarmer}}
	neg := decimal.NewFromInt(-1)
	past := time.Now().Add(-time.Hour)
	cases := []struct {
		name string
		cmd  listing.CreateCommand
		want error
	}{
		{"zero quantity", listing.CreateCommand{FarmerID: e.farmer.ID, Crop: "maize"}, types.ErrValidation},
		{"no crop", listing.CreateCommand{FarmerID: e.farmer.ID, Quantity: 1}, types.ErrValidation},
		{"negative price", listing.CreateCommand{FarmerID: e.farmer.ID, Crop: "maize", Quantity: 1, Price: &neg}, types.ErrValidation},
		{"past expiry", listing.CreateCommand{FarmerID: e.farmer.ID, Crop: "maize", Quantity: 1, ExpiresAt: &past}, types.ErrValidation},
		{"unknown farmer", listing.CreateCommand{FarmerID: pending.ID, Crop: "maize", Quantity: 1}, types.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.svc.Create(e.ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateMetadata(t *testing.T) {
	e := newEnv(t)
	price := decimal.NewFromInt(30)
	l := e.create(t, listing.CreateCommand{Crop: "beans", Quantity: 100, Price: &price, Description: "dry"})

	got, err := e.svc.UpdateMetadata(e.ctx, listing.UpdateCommand{
		CallerID: e.farmer.ID, ListingID: l.ID,
		Price: types.Cleared[decimal.Decimal](), Negotiable: types.Some(true),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Price != nil || !got.Negotiable || got.Description != "dry" {
		t.Fatalf("absent fields must be kept and cleared ones dropped: %+v", got)
	}
	stored, _ := e.svc.Get(e.ctx, l.ID)
	if stored.Price != nil {
		t.Fatalf("cleared price should persist")
	}

	if _, err := e.svc.UpdateMetadata(e.ctx, listing.UpdateCommand{CallerID: e.other.ID, ListingID: l.ID, Promoted: types.Some(true)}); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("non-owner: expected unauthorized, got %v", err)
	}
	if _, err := e.svc.UpdateMetadata(e.ctx, listing.UpdateCommand{CallerID: e.admin.ID, ListingID: l.ID, Promoted: types.Some(true)}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestDeleteAndExpire(t *testing.T) {
	e := newEnv(t)
	soon := time.Now().Add(time.Minute)
	l := e.create(t, listing.CreateCommand{Crop: "kale", Quantity: 10, ExpiresAt: &soon})
	keep := e.create(t, listing.CreateCommand{Crop: "kale", Quantity: 10})

	n, err := e.svc.ExpireDue(e.ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expiry, got %d err=%v", n, err)
	}
	if got, _ := e.svc.Get(e.ctx, l.ID); got.Status != listing.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
	if _, err := e.svc.UpdateMetadata(e.ctx, listing.UpdateCommand{CallerID: e.farmer.ID, ListingID: l.ID, Promoted: types.Some(true)}); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("editing expired listing: expected invalid state, got %v", err)
	}

	if err := e.svc.Delete(e.ctx, e.other.ID, keep.ID); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("non-owner delete: expected unauthorized, got %v", err)
	}
	if err := e.svc.Delete(e.ctx, e.farmer.ID, keep.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.svc.Get(e.ctx, keep.ID); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	e := newEnv(t)
	e.create(t, listing.CreateCommand{Crop: "tomato", Quantity: 10, Location: types.Location{County: "Nairobi"}})
	e.create(t, listing.CreateCommand{Crop: "Tomato", Quantity: 10, Location: types.Location{County: "Kiambu"}})
	e.create(t, listing.CreateCommand{Crop: "cherry tomato", Quantity: 10, Location: types.Location{County: "Nairobi"}})

	got, err := e.svc.List(e.ctx, listing.Filter{Crop: "TOMATO"})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 exact crop matches, got %d err=%v", len(got), err)
	}
	got, _ = e.svc.List(e.ctx, listing.Filter{Crop: "tomato", County: "nairobi"})
	if len(got) != 1 {
		t.Fatalf("expected 1 listing in Nairobi, got %d", len(got))
	}
}

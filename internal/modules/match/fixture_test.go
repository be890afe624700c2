// README: Shared fixture for engine tests: one farmer, buyer, driver and admin with an open
// listing, demand and transport offer, run against the memory store and, when configured, Postgres.
package match_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/store/memory"
	"agrimatch/internal/store/pgtest"
	"agrimatch/internal/types"
)

type backend struct {
	actors   actor.ActorStore
	listings listing.ListingStore
	demands  demand.DemandStore
	offers   transport.OfferStore
	matches  match.MatchStore
}

func memoryBackend(*testing.T) backend {
	db := memory.New()
	return backend{db.Actors(), db.Listings(), db.Demands(), db.Offers(), db.Matches()}
}

func postgresBackend(t *testing.T) backend {
	db := pgtest.Open(t)
	return backend{actor.NewStore(db), listing.NewStore(db), demand.NewStore(db), transport.NewStore(db), match.NewStore(db)}
}

// forEachBackend runs fn against every store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("memory", func(t *testing.T) { fn(t, memoryBackend(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, postgresBackend(t)) })
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	b        backend
	svc      *match.Service
	listings *listing.Service
	demands  *demand.Service
	offers   *transport.Service
	pub      *fanout.Recorder

	farmer, buyer, driver, driver2, admin, stranger *actor.Actor

	listing *listing.Listing
	demand  *demand.Demand
	offer   *transport.Offer
	offer2  *transport.Offer
}

func newFixture(t *testing.T, b backend, ttl time.Duration) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), b: b, pub: fanout.NewRecorder()}
	f.farmer = f.actor("farmer", true, actor.RoleFarmer)
	f.buyer = f.actor("buyer", true, actor.RoleBuyer)
	f.driver = f.actor("driver", true, actor.RoleDriver)
	f.driver2 = f.actor("driver2", true, actor.RoleDriver)
	f.admin = f.actor("admin", true, actor.RoleAdmin)
	f.stranger = f.actor("stranger", true, actor.RoleBuyer)

	f.listings = listing.NewService(b.listings, b.actors, f.pub)
	f.demands = demand.NewService(b.demands, b.actors, f.pub)
	f.offers = transport.NewService(b.offers, b.actors, f.pub)
	f.svc = match.NewService(b.matches, match.Deps{
		Listings:  b.listings,
		Demands:   b.demands,
		Offers:    b.offers,
		Actors:    b.actors,
		Publisher: f.pub,
		TTL:       ttl,
	})

	f.listing = f.newListing(f.farmer, 500)
	f.demand = f.newDemand(f.buyer, 200)
	f.offer = f.newOffer(f.driver)
	f.offer2 = f.newOffer(f.driver2)
	return f
}

func (f *fixture) actor(name string, verified bool, roles ...actor.Role) *actor.Actor {
	f.t.Helper()
	now := time.Now()
	a, err := f.b.actors.FindOrCreateByExternalID(f.ctx, &actor.Actor{
		ID: types.NewID(), ExternalID: "ext-" + name + "-" + string(types.NewID()), Name: name,
		Verification: actor.VerificationPending, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		f.t.Fatalf("create actor %s: %v", name, err)
	}
	a.Roles = roles
	a.PrimaryRole = roles[0]
	if verified {
		a.Verification = actor.VerificationApproved
	}
	a.Location = types.Location{County: "Nairobi"}
	if err := f.b.actors.Update(f.ctx, a); err != nil {
		f.t.Fatalf("update actor %s: %v", name, err)
	}
	return a
}

func (f *fixture) newListing(owner *actor.Actor, qty float64) *listing.Listing {
	f.t.Helper()
	p := decimal.NewFromInt(30)
	l, err := f.listings.Create(f.ctx, listing.CreateCommand{
		FarmerID: owner.ID, Crop: "tomato", Quantity: qty, Price: &p,
		Location: types.Location{County: "Nairobi"},
	})
	if err != nil {
		f.t.Fatalf("create listing: %v", err)
	}
	return l
}

func (f *fixture) newDemand(owner *actor.Actor, qty float64) *demand.Demand {
	f.t.Helper()
	p := decimal.NewFromInt(35)
	d, err := f.demands.Create(f.ctx, demand.CreateCommand{
		BuyerID: owner.ID, Crop: "Tomato", Quantity: qty, PriceOffer: &p, Urgency: demand.UrgencyHigh,
		Location: types.Location{County: "Kiambu"},
	})
	if err != nil {
		f.t.Fatalf("create demand: %v", err)
	}
	return d
}

func (f *fixture) newOffer(driver *actor.Actor) *transport.Offer {
	f.t.Helper()
	o, err := f.offers.Create(f.ctx, transport.CreateCommand{
		DriverID: driver.ID, VehicleType: "pickup", CapacityKg: 1000,
		PricePerKm: decimal.NewFromInt(50), OriginCounty: "Nairobi",
	})
	if err != nil {
		f.t.Fatalf("create offer: %v", err)
	}
	return o
}

func (f *fixture) create(by *actor.Actor) *match.Match {
	f.t.Helper()
	m, err := f.svc.Create(f.ctx, match.CreateCommand{CallerID: by.ID, ListingID: f.listing.ID, DemandID: f.demand.ID})
	if err != nil {
		f.t.Fatalf("create match: %v", err)
	}
	return m
}

func (f *fixture) act(m *match.Match, by *actor.Actor) match.ActionCommand {
	return match.ActionCommand{MatchID: m.ID, CallerID: by.ID}
}

func (f *fixture) must(m *match.Match, err error) *match.Match {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("transition: %v", err)
	}
	return m
}

// advance walks a fresh buyer-initiated match to status along the happy path.
func (f *fixture) advance(to match.Status) *match.Match {
	f.t.Helper()
	return f.walk(f.create(f.buyer), to)
}

// walk moves an existing buyer-initiated match forward to status.
func (f *fixture) walk(m *match.Match, to match.Status) *match.Match {
	f.t.Helper()
	steps := []struct {
		status match.Status
		run    func() (*match.Match, error)
	}{
		{match.StatusAccepted, func() (*match.Match, error) { return f.svc.Accept(f.ctx, f.act(m, f.farmer)) }},
		{match.StatusDriverAssigned, func() (*match.Match, error) {
			return f.svc.AssignDriver(f.ctx, match.AssignDriverCommand{ActionCommand: f.act(m, f.buyer), OfferID: f.offer.ID})
		}},
		{match.StatusDriverAccepted, func() (*match.Match, error) { return f.svc.DriverAccept(f.ctx, f.act(m, f.driver)) }},
		{match.StatusInTransit, func() (*match.Match, error) { return f.svc.StartTransit(f.ctx, f.act(m, f.driver)) }},
		{match.StatusCompleted, func() (*match.Match, error) { return f.svc.Complete(f.ctx, f.act(m, f.buyer)) }},
	}
	for _, st := range steps {
		if m.Status == to {
			return m
		}
		m = f.must(st.run())
		if m.Status != st.status {
			f.t.Fatalf("expected %s, got %s", st.status, m.Status)
		}
	}
	if m.Status != to {
		f.t.Fatalf("could not reach %s", to)
	}
	return m
}

func (f *fixture) eventKinds(m *match.Match) []match.EventKind {
	f.t.Helper()
	evs, err := f.b.matches.Events(f.ctx, m.ID)
	if err != nil {
		f.t.Fatalf("events: %v", err)
	}
	out := make([]match.EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func (f *fixture) offerStatus(id types.ID) transport.Status {
	f.t.Helper()
	o, err := f.b.offers.Get(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get offer: %v", err)
	}
	return o.Status
}

// README: Scoring engine tests (points table, pool filter, ordering, driver search).
package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func farmer(id string, verified bool, rating float64) *actor.Actor {
	a := &actor.Actor{ID: types.ID(id), Roles: []actor.Role{actor.RoleFarmer}, Verification: actor.VerificationPending}
	if verified {
		a.Verification = actor.VerificationApproved
	}
	if rating > 0 {
		a.RatingAverage, a.RatingCount = rating, 3
	}
	return a
}

func tomatoListing(id, county string) *listing.Listing {
	return &listing.Listing{
		ID: types.ID(id), FarmerID: "f-" + types.ID(id), Crop: "tomato", Quantity: 500, Price: price("30"),
		Currency: "KES", Location: types.Location{County: county}, Status: listing.StatusAvailable, CreatedAt: t0,
	}
}

func tomatoDemand() *demand.Demand {
	return &demand.Demand{
		ID: "d1", BuyerID: "b1", Crop: "Tomato", Quantity: 200, PriceOffer: price("35"), Currency: "KES",
		Urgency: demand.UrgencyHigh, Location: types.Location{County: "Nairobi"}, Status: demand.StatusOpen, CreatedAt: t0,
	}
}

func TestTomatoScenario(t *testing.T) {
	d := tomatoDemand()
	near := ListingCandidate{Listing: tomatoListing("l-near", "Nairobi"), Owner: farmer("f1", false, 0)}
	far := ListingCandidate{Listing: tomatoListing("l-far", "Nakuru"), Owner: farmer("f2", false, 0)}

	got := RankListings(d, []ListingCandidate{far, near}, Filter{})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Listing.ID != "l-near" {
		t.Fatalf("expected same-county listing first, got %s", got[0].Listing.ID)
	}
	if got[0].Score != 21 {
		t.Fatalf("expected score 21 (crop+county+price+high), got %d: %v", got[0].Score, got[0].Reasons)
	}
	if got[1].Score != 16 {
		t.Fatalf("expected score 16 for other county, got %d", got[1].Score)
	}

	near.Owner = farmer("f1", true, 0)
	score, _ := ScoreListing(d, near)
	if score != 23 {
		t.Fatalf("expected verified owner to add 2, got %d", score)
	}
}

func TestScoreListingPoints(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(l *listing.Listing, d *demand.Demand, owner **actor.Actor)
		want   int
	}{
		{"baseline", func(*listing.Listing, *demand.Demand, **actor.Actor) {}, 21},
		{"urgent", func(_ *listing.Listing, d *demand.Demand, _ **actor.Actor) { d.Urgency = demand.UrgencyUrgent }, 23},
		{"normal urgency", func(_ *listing.Listing, d *demand.Demand, _ **actor.Actor) { d.Urgency = demand.UrgencyNormal }, 18},
		{"price too high", func(l *listing.Listing, _ *demand.Demand, _ **actor.Actor) { l.Price = price("40") }, 18},
		{"negotiable", func(l *listing.Listing, _ *demand.Demand, _ **actor.Actor) { l.Price = price("40"); l.Negotiable = true }, 21},
		{"no offer price", func(_ *listing.Listing, d *demand.Demand, _ **actor.Actor) { d.PriceOffer = nil }, 21},
		{"promoted", func(l *listing.Listing, _ *demand.Demand, _ **actor.Actor) { l.Promoted = true }, 22},
		{"rated owner", func(_ *listing.Listing, _ *demand.Demand, o **actor.Actor) { *o = farmer("f", true, 4.5) }, 25},
		{"low rated owner", func(_ *listing.Listing, _ *demand.Demand, o **actor.Actor) { *o = farmer("f", false, 3.9) }, 21},
		{"county differs case", func(l *listing.Listing, _ *demand.Demand, _ **actor.Actor) { l.Location.County = "NAIROBI" }, 21},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, d := tomatoListing("l1", "Nairobi"), tomatoDemand()
			owner := farmer("f", false, 0)
			tc.mutate(l, d, &owner)
			got, reasons := ScoreListing(d, ListingCandidate{Listing: l, Owner: owner})
			if got != tc.want {
				t.Fatalf("score = %d, want %d (%v)", got, tc.want, reasons)
			}
			if len(reasons) == 0 || reasons[0] != "crop match: tomato" {
				t.Fatalf("expected crop reason first, got %v", reasons)
			}
		})
	}
}

func TestCropMismatchScoresZero(t *testing.T) {
	l, d := tomatoListing("l1", "Nairobi"), tomatoDemand()
	l.Crop = "onion"
	score, reasons := ScoreListing(d, ListingCandidate{Listing: l, Owner: farmer("f", true, 5)})
	if score != 0 || len(reasons) != 0 {
		t.Fatalf("expected zero score for crop mismatch, got %d %v", score, reasons)
	}
	if got := RankListings(d, []ListingCandidate{{Listing: l}}, Filter{}); len(got) != 0 {
		t.Fatalf("expected mismatched crop to be filtered, got %d", len(got))
	}
	// substring is not a match
	l.Crop = "cherry tomato"
	if got := RankListings(d, []ListingCandidate{{Listing: l}}, Filter{}); len(got) != 0 {
		t.Fatalf("expected substring crop to be filtered")
	}
}

func TestScoreDemandDirection(t *testing.T) {
	l := tomatoListing("l1", "Nairobi")
	d := tomatoDemand()
	d.Urgency = demand.UrgencyUrgent
	buyer := &actor.Actor{ID: "b1", Verification: actor.VerificationApproved}
	got, reasons := ScoreDemand(l, DemandCandidate{Demand: d, Owner: buyer})
	// crop 10 + county 5 + price 3 + verified 2; urgent earns nothing here
	if got != 20 {
		t.Fatalf("score = %d, want 20 (%v)", got, reasons)
	}
	d.Urgency = demand.UrgencyHigh
	l.Promoted = true
	if got, _ := ScoreDemand(l, DemandCandidate{Demand: d, Owner: buyer}); got != 23 {
		t.Fatalf("score = %d, want 23", got)
	}
}

func TestRankListingsPoolFilter(t *testing.T) {
	d := tomatoDemand()
	small := tomatoListing("small", "Nairobi")
	small.Quantity = 150
	partlySold := tomatoListing("partly", "Nairobi")
	partlySold.QuantityFulfilled = 350
	sold := tomatoListing("sold", "Nairobi")
	sold.Status = listing.StatusSold
	own := tomatoListing("own", "Nairobi")
	own.FarmerID = d.BuyerID
	pricey := tomatoListing("pricey", "Nairobi")
	pricey.Price = price("36")
	ok := tomatoListing("ok", "Kiambu")

	pool := []ListingCandidate{{Listing: small}, {Listing: partlySold}, {Listing: sold}, {Listing: own}, {Listing: pricey}, {Listing: ok}}
	got := RankListings(d, pool, Filter{})
	if len(got) != 1 || got[0].Listing.ID != "ok" {
		t.Fatalf("expected only 'ok' to pass the filter, got %+v", got)
	}
	if got := RankListings(d, pool, Filter{County: "nairobi"}); len(got) != 0 {
		t.Fatalf("expected county filter to drop Kiambu listing")
	}
}

func TestRankListingsTieOrder(t *testing.T) {
	d := tomatoDemand()
	older := tomatoListing("b-older", "Nairobi")
	older.CreatedAt = t0.Add(-time.Hour)
	newer := tomatoListing("c-newer", "Nairobi")
	sameTime := tomatoListing("a-same", "Nairobi")
	promoted := tomatoListing("z-promoted", "Nakuru")
	promoted.Promoted = true

	got := RankListings(d, []ListingCandidate{{Listing: older}, {Listing: newer}, {Listing: sameTime}, {Listing: promoted}}, Filter{})
	want := []types.ID{"a-same", "c-newer", "b-older", "z-promoted"}
	for i, id := range want {
		if got[i].Listing.ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].Listing.ID, id)
		}
	}
	if got := RankListings(d, []ListingCandidate{{Listing: older}, {Listing: newer}}, Filter{Limit: 1}); len(got) != 1 {
		t.Fatalf("expected limit to cap results")
	}
}

func TestPresortListings(t *testing.T) {
	a := tomatoListing("a", "X")
	b := tomatoListing("b", "X")
	b.Promoted = true
	c := tomatoListing("c", "X")
	c.CreatedAt = t0.Add(time.Minute)
	pool := []ListingCandidate{{Listing: a}, {Listing: c}, {Listing: b}}
	PresortListings(pool)
	if pool[0].Listing.ID != "b" || pool[1].Listing.ID != "c" || pool[2].Listing.ID != "a" {
		t.Fatalf("unexpected presort order: %s %s %s", pool[0].Listing.ID, pool[1].Listing.ID, pool[2].Listing.ID)
	}
}

func offer(id, origin string, capacity float64, perKm string, driverRating float64) OfferCandidate {
	return OfferCandidate{
		Offer: &transport.Offer{
			ID: types.ID(id), DriverID: types.ID("drv-" + id), CapacityKg: capacity,
			PricePerKm: decimal.RequireFromString(perKm), OriginCounty: origin, Status: transport.StatusAvailable,
		},
		Driver: &actor.Actor{ID: types.ID("drv-" + id), RatingAverage: driverRating, RatingCount: 1},
	}
}

func TestSuggestDriversRegional(t *testing.T) {
	l, d := tomatoListing("l1", "Nairobi"), tomatoDemand()
	d.Location.County = "Kiambu"
	pool := []OfferCandidate{
		offer("cheap", "nairobi", 300, "40", 4),
		offer("pricey", "Nairobi", 300, "60", 4),
		offer("top", "Kiambu", 300, "90", 5),
		offer("tiny", "Nairobi", 100, "10", 5),
		offer("remote", "Mombasa", 300, "20", 5),
	}
	paused := offer("paused", "Nairobi", 300, "10", 5)
	paused.Offer.Status = transport.StatusUnavailable
	later := offer("later", "Nairobi", 300, "10", 5)
	from := t0.Add(48 * time.Hour)
	later.Offer.AvailableFrom = &from
	regionViaList := offer("regions", "Kisumu", 300, "50", 3)
	regionViaList.Offer.ServicedRegions = []string{"KIAMBU"}
	pool = append(pool, paused, later, regionViaList)

	got := SuggestDrivers(l, d, 0, pool, t0)
	if got.Kind != SearchRegional {
		t.Fatalf("expected regional search, got %s", got.Kind)
	}
	if got.RequiredCapacity != 200 {
		t.Fatalf("required capacity = %v, want 200", got.RequiredCapacity)
	}
	want := []types.ID{"top", "cheap", "pricey", "regions"}
	if len(got.Offers) != len(want) {
		t.Fatalf("expected %d regional offers, got %d", len(want), len(got.Offers))
	}
	for i, id := range want {
		if got.Offers[i].Offer.ID != id {
			t.Fatalf("regional[%d] = %s, want %s", i, got.Offers[i].Offer.ID, id)
		}
	}
	if len(got.Supplementary) != 1 || got.Supplementary[0].Offer.ID != "remote" {
		t.Fatalf("expected remote offer as supplementary, got %+v", got.Supplementary)
	}
}

func TestSuggestDriversExpandedFallback(t *testing.T) {
	l, d := tomatoListing("l1", "Nairobi"), tomatoDemand()
	var pool []OfferCandidate
	for i := 0; i < 12; i++ {
		pool = append(pool, offer(string(rune('a'+i)), "Mombasa", 500, "10", 4))
	}
	got := SuggestDrivers(l, d, 0, pool, t0)
	if got.Kind != SearchExpanded || got.Reason == "" {
		t.Fatalf("expected expanded search with a reason, got %+v", got)
	}
	if len(got.Offers) != MaxDriverSuggestions {
		t.Fatalf("expected cap of %d, got %d", MaxDriverSuggestions, len(got.Offers))
	}
	if len(got.Supplementary) != 0 {
		t.Fatalf("expanded search must not carry supplementary offers")
	}
	if got.Offers[0].Offer.ID != "a" {
		t.Fatalf("expected id tie-break, got %s", got.Offers[0].Offer.ID)
	}

	none := SuggestDrivers(l, d, 0, []OfferCandidate{offer("tiny", "Nairobi", 10, "1", 5)}, t0)
	if none.Kind != SearchExpanded || len(none.Offers) != 0 {
		t.Fatalf("expected empty expanded result when nothing has capacity")
	}
}

func TestSuggestDriversAgreedQuantity(t *testing.T) {
	l, d := tomatoListing("l1", "Nairobi"), tomatoDemand()
	pool := []OfferCandidate{offer("tiny", "Nairobi", 100, "10", 5), offer("small", "Nairobi", 80, "10", 5)}
	got := SuggestDrivers(l, d, 100, pool, t0)
	if got.RequiredCapacity != 100 {
		t.Fatalf("required capacity = %v, want 100", got.RequiredCapacity)
	}
	if got.Kind != SearchRegional || len(got.Offers) != 1 || got.Offers[0].Offer.ID != "tiny" {
		t.Fatalf("expected only the 100 kg offer, got %+v", got.Offers)
	}
}

// README: In-memory implementation of every store interface. One mutex guards all state so
// multi-entity writes are atomic, with the same version checks as the Postgres stores.
package memory

import (
	"sync"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

type pair struct {
	listing types.ID
	demand  types.ID
}

type reviewKey struct {
	match    types.ID
	reviewer types.ID
}

type DB struct {
	mu sync.Mutex

	actors     map[types.ID]*actor.Actor
	externalID map[string]types.ID
	listings   map[types.ID]*listing.Listing
	demands    map[types.ID]*demand.Demand
	offers     map[types.ID]*transport.Offer
	matches    map[types.ID]*match.Match
	pairs      map[pair]types.ID
	events     map[types.ID][]match.Event
	eventSeq   int64
	messages   map[types.ID][]*messaging.Message
	messageSeq int64
	reviews    []*review.Review
	reviewed   map[reviewKey]bool
}

func New() *DB {
	return &DB{
		actors:     map[types.ID]*actor.Actor{},
		externalID: map[string]types.ID{},
		listings:   map[types.ID]*listing.Listing{},
		demands:    map[types.ID]*demand.Demand{},
		offers:     map[types.ID]*transport.Offer{},
		matches:    map[types.ID]*match.Match{},
		pairs:      map[pair]types.ID{},
		events:     map[types.ID][]match.Event{},
		messages:   map[types.ID][]*messaging.Message{},
		reviewed:   map[reviewKey]bool{},
	}
}

func (db *DB) Actors() *Actors     { return &Actors{db: db} }
func (db *DB) Listings() *Listings { return &Listings{db: db} }
func (db *DB) Demands() *Demands   { return &Demands{db: db} }
func (db *DB) Offers() *Offers     { return &Offers{db: db} }
func (db *DB) Matches() *Matches   { return &Matches{db: db} }
func (db *DB) Messages() *Messages { return &Messages{db: db} }
func (db *DB) Reviews() *Reviews   { return &Reviews{db: db} }

func copyActor(a *actor.Actor) *actor.Actor {
	c := *a
	c.Roles = append([]actor.Role(nil), a.Roles...)
	return &c
}

func copyListing(l *listing.Listing) *listing.Listing {
	c := *l
	return &c
}

func copyDemand(d *demand.Demand) *demand.Demand {
	c := *d
	return &c
}

func copyOffer(o *transport.Offer) *transport.Offer {
	c := *o
	c.ServicedRegions = append([]string(nil), o.ServicedRegions...)
	return &c
}

func copyMatch(m *match.Match) *match.Match {
	c := *m
	return &c
}

// README: Builds the module services over one storage backend (Postgres or in-memory).
package service

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/modules/messaging"
	"agrimatch/internal/modules/review"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/store/memory"
)

// Stores is one backend's implementation of every module store.
type Stores struct {
	Actors   actor.ActorStore
	Listings listing.ListingStore
	Demands  demand.DemandStore
	Offers   transport.OfferStore
	Matches  match.MatchStore
	Messages messaging.MessageStore
	Reviews  review.ReviewStore
}

func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Actors:   actor.NewStore(db),
		Listings: listing.NewStore(db),
		Demands:  demand.NewStore(db),
		Offers:   transport.NewStore(db),
		Matches:  match.NewStore(db),
		Messages: messaging.NewStore(db),
		Reviews:  review.NewStore(db),
	}
}

func MemoryStores(db *memory.DB) Stores {
	return Stores{
		Actors:   db.Actors(),
		Listings: db.Listings(),
		Demands:  db.Demands(),
		Offers:   db.Offers(),
		Matches:  db.Matches(),
		Messages: db.Messages(),
		Reviews:  db.Reviews(),
	}
}

type Options struct {
	Publisher fanout.Publisher
	Distance  match.DistanceEstimator
	MatchTTL  time.Duration
}

type Services struct {
	Actors   *actor.Service
	Listings *listing.Service
	Demands  *demand.Service
	Offers   *transport.Service
	Matches  *match.Service
	Messages *messaging.Service
	Reviews  *review.Service
}

func New(st Stores, opts Options) *Services {
	pub := opts.Publisher
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Services{
		Actors:   actor.NewService(st.Actors),
		Listings: listing.NewService(st.Listings, st.Actors, pub),
		Demands:  demand.NewService(st.Demands, st.Actors, pub),
		Offers:   transport.NewService(st.Offers, st.Actors, pub),
		Matches: match.NewService(st.Matches, match.Deps{
			Listings:  st.Listings,
			Demands:   st.Demands,
			Offers:    st.Offers,
			Actors:    st.Actors,
			Publisher: pub,
			Distance:  opts.Distance,
			TTL:       opts.MatchTTL,
		}),
		Messages: messaging.NewService(st.Messages, st.Matches, st.Actors, pub),
		Reviews:  review.NewService(st.Reviews, st.Matches, pub),
	}
}

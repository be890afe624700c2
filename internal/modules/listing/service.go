// README: Listing service: verification-gated creation, owner metadata edits, pool queries.
package listing

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/types"
)

type ListingStore interface {
	Create(ctx context.Context, l *Listing) error
	Get(ctx context.Context, id types.ID) (*Listing, error)
	UpdateMetadata(ctx context.Context, l *Listing) error
	Delete(ctx context.Context, id types.ID) error
	List(ctx context.Context, f Filter) ([]*Listing, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type ActorReader interface {
	Get(ctx context.Context, id types.ID) (*actor.Actor, error)
}

type Service struct {
	store  ListingStore
	actors ActorReader
	pub    fanout.Publisher
	now    func() time.Time
}

func NewService(store ListingStore, actors ActorReader, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{store: store, actors: actors, pub: pub, now: time.Now}
}

type CreateCommand struct {
	FarmerID    types.ID `validate:"required"`
	Crop        string   `validate:"required"`
	Quantity    float64  `validate:"gt=0"`
	Price       *decimal.Decimal
	Currency    string
	Negotiable  bool
	Description string `validate:"max=2000"`
	Location    types.Location
	ExpiresAt   *time.Time
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Listing, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	if cmd.Price != nil && cmd.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", types.ErrValidation)
	}
	owner, err := s.actors.Get(ctx, cmd.FarmerID)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(owner, actor.CapCreateListing); err != nil {
		return nil, err
	}
	now := s.now()
	if cmd.ExpiresAt != nil && !cmd.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", types.ErrValidation)
	}
	currency := cmd.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	l := &Listing{
		ID:          types.NewID(),
		FarmerID:    cmd.FarmerID,
		Crop:        strings.TrimSpace(cmd.Crop),
		Quantity:    cmd.Quantity,
		Price:       cmd.Price,
		Currency:    currency,
		Negotiable:  cmd.Negotiable,
		Description: cmd.Description,
		Location:    cmd.Location,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   cmd.ExpiresAt,
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, fanout.TopicChannel(l.Crop, l.Location.County), "listing_created", l); err != nil {
		log.Printf("listing %s: publish listing_created: %v", l.ID, err)
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Listing, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Listing, error) {
	return s.store.List(ctx, f)
}

type UpdateCommand struct {
	CallerID    types.ID
	ListingID   types.ID
	Price       types.Optional[decimal.Decimal]
	Negotiable  types.Optional[bool]
	Description types.Optional[string]
	Promoted    types.Optional[bool]
	ExpiresAt   types.Optional[time.Time]
}

// UpdateMetadata edits an open listing owned by the caller (or any listing, for admins).
func (s *Service) UpdateMetadata(ctx context.Context, cmd UpdateCommand) (*Listing, error) {
	l, err := s.ownedForWrite(ctx, cmd.CallerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if !l.Open() {
		return nil, fmt.Errorf("%w: listing %s is %s", types.ErrInvalidState, l.ID, l.Status)
	}
	if cmd.Price.Set {
		if cmd.Price.Clear {
			l.Price = nil
		} else {
			if cmd.Price.Value.IsNegative() {
				return nil, fmt.Errorf("%w: price must not be negative", types.ErrValidation)
			}
			p := cmd.Price.Value
			l.Price = &p
		}
	}
	if cmd.Negotiable.Set {
		l.Negotiable = cmd.Negotiable.Value && !cmd.Negotiable.Clear
	}
	if cmd.Description.Set {
		l.Description = cmd.Description.Value
		if cmd.Description.Clear {
			l.Description = ""
		}
	}
	if cmd.Promoted.Set {
		l.Promoted = cmd.Promoted.Value && !cmd.Promoted.Clear
	}
	if cmd.ExpiresAt.Set {
		if cmd.ExpiresAt.Clear {
			l.ExpiresAt = nil
		} else {
			t := cmd.ExpiresAt.Value
			l.ExpiresAt = &t
		}
	}
	l.UpdatedAt = s.now()
	if err := s.store.UpdateMetadata(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, callerID, id types.ID) error {
	if _, err := s.ownedForWrite(ctx, callerID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// ExpireDue is called by the expiry sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return s.store.ExpireDue(ctx, now)
}

func (s *Service) ownedForWrite(ctx context.Context, callerID, id types.ID) (*Listing, error) {
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.FarmerID != caller.ID && !actor.HasCapability(caller, actor.CapManageAnyEntity) {
		return nil, fmt.Errorf("%w: listing %s is not owned by %s", types.ErrUnauthorized, id, caller.ID)
	}
	return l, nil
}

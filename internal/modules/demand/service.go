// README: Demand service: verification-gated creation, owner edits and withdrawal.
package demand

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

type DemandStore interface {
	Create(ctx context.Context, d *Demand) error
	Get(ctx context.Context, id types.ID) (*Demand, error)
	UpdateMetadata(ctx context.Context, d *Demand) error
	Cancel(ctx context.Context, id types.ID, now time.Time) error
	Delete(ctx context.Context, id types.ID) error
	List(ctx context.Context, f Filter) ([]*Demand, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type ActorReader interface {
	Get(ctx context.Context, id types.ID) (*actor.Actor, error)
}

type Service struct {
	store  DemandStore
	actors ActorReader
	pub    fanout.Publisher
	now    func() time.Time
}

func NewService(store DemandStore, actors ActorReader, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{store: store, actors: actors, pub: pub, now: time.Now}
}

type CreateCommand struct {
	BuyerID     types.ID `validate:"required"`
	Crop        string   `validate:"required"`
	Quantity    float64  `validate:"gt=0"`
	PriceOffer  *decimal.Decimal
	Currency    string
	Urgency     Urgency
	Description string `validate:"max=2000"`
	Location    types.Location
	ExpiresAt   *time.Time
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Demand, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	if cmd.Urgency == "" {
		cmd.Urgency = UrgencyNormal
	}
	if !cmd.Urgency.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", types.ErrValidation, cmd.Urgency)
	}
	if cmd.PriceOffer != nil && cmd.PriceOffer.IsNegative() {
		return nil, fmt.Errorf("%w: price offer must not be negative", types.ErrValidation)
	}
	owner, err := s.actors.Get(ctx, cmd.BuyerID)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(owner, actor.CapCreateDemand); err != nil {
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
	d := &Demand{
		ID:          types.NewID(),
		BuyerID:     cmd.BuyerID,
		Crop:        strings.TrimSpace(cmd.Crop),
		Quantity:    cmd.Quantity,
		PriceOffer:  cmd.PriceOffer,
		Currency:    currency,
		Urgency:     cmd.Urgency,
		Description: cmd.Description,
		Location:    cmd.Location,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   cmd.ExpiresAt,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, fanout.TopicChannel(d.Crop, d.Location.County), "demand_created", d); err != nil {
		log.Printf("demand %s: publish demand_created: %v", d.ID, err)
	}
	if d.Urgency == UrgencyHigh || d.Urgency == UrgencyUrgent {
		if err := s.pub.Publish(ctx, fanout.UrgencyChannel(string(d.Urgency)), "demand_created", d); err != nil {
			log.Printf("demand %s: publish urgency: %v", d.ID, err)
		}
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Demand, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Demand, error) {
	return s.store.List(ctx, f)
}

type UpdateCommand struct {
	CallerID    types.ID
	DemandID    types.ID
	PriceOffer  types.Optional[decimal.Decimal]
	Urgency     types.Optional[Urgency]
	Description types.Optional[string]
	ExpiresAt   types.Optional[time.Time]
}

func (s *Service) UpdateMetadata(ctx context.Context, cmd UpdateCommand) (*Demand, error) {
	d, err := s.ownedForWrite(ctx, cmd.CallerID, cmd.DemandID)
	if err != nil {
		return nil, err
	}
	if !d.Open() {
		return nil, fmt.Errorf("%w: demand %s is %s", types.ErrInvalidState, d.ID, d.Status)
	}
	if cmd.PriceOffer.Set {
		if cmd.PriceOffer.Clear {
			d.PriceOffer = nil
		} else {
			if cmd.PriceOffer.Value.IsNegative() {
				return nil, fmt.Errorf("%w: price offer must not be negative", types.ErrValidation)
			}
			p := cmd.PriceOffer.Value
			d.PriceOffer = &p
		}
	}
	if cmd.Urgency.Set {
		u := cmd.Urgency.Value
		if cmd.Urgency.Clear {
			u = UrgencyNormal
		}
		if !u.Valid() {
			return nil, fmt.Errorf("%w: unknown urgency %q", types.ErrValidation, u)
		}
		d.Urgency = u
	}
	if cmd.Description.Set {
		d.Description = cmd.Description.Value
		if cmd.Description.Clear {
			d.Description = ""
		}
	}
	if cmd.ExpiresAt.Set {
		if cmd.ExpiresAt.Clear {
			d.ExpiresAt = nil
		} else {
			t := cmd.ExpiresAt.Value
			d.ExpiresAt = &t
		}
	}
	d.UpdatedAt = s.now()
	if err := s.store.UpdateMetadata(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Withdraw cancels an open demand.
func (s *Service) Withdraw(ctx context.Context, callerID, id types.ID) error {
	d, err := s.ownedForWrite(ctx, callerID, id)
	if err != nil {
		return err
	}
	if d.Status == StatusFulfilled || d.Status == StatusExpired || d.Status == StatusCancelled {
		return fmt.Errorf("%w: demand %s is %s", types.ErrTerminalState, id, d.Status)
	}
	return s.store.Cancel(ctx, id, s.now())
}

func (s *Service) Delete(ctx context.Context, callerID, id types.ID) error {
	if _, err := s.ownedForWrite(ctx, callerID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return s.store.ExpireDue(ctx, now)
}

func (s *Service) ownedForWrite(ctx context.Context, callerID, id types.ID) (*Demand, error) {
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.BuyerID != caller.ID && !actor.HasCapability(caller, actor.CapManageAnyEntity) {
		return nil, fmt.Errorf("%w: demand %s is not owned by %s", types.ErrUnauthorized, id, caller.ID)
	}
	return d, nil
}

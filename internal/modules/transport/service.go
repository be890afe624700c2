// README: Transport offer service: driver-owned capacity announcements.
package transport

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

type OfferStore interface {
	Create(ctx context.Context, o *Offer) error
	Get(ctx context.Context, id types.ID) (*Offer, error)
	SetStatus(ctx context.Context, id types.ID, status Status, now time.Time) error
	List(ctx context.Context, f Filter) ([]*Offer, error)
}

type ActorReader interface {
	Get(ctx context.Context, id types.ID) (*actor.Actor, error)
}

type Service struct {
	store  OfferStore
	actors ActorReader
	pub    fanout.Publisher
	now    func() time.Time
}

func NewService(store OfferStore, actors ActorReader, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{store: store, actors: actors, pub: pub, now: time.Now}
}

type CreateCommand struct {
	DriverID          types.ID `validate:"required"`
	VehicleType       string   `validate:"required"`
	CapacityKg        float64  `validate:"gt=0"`
	PricePerKm        decimal.Decimal
	Currency          string
	OriginCounty      string `validate:"required"`
	DestinationCounty string
	ServicedRegions   []string
	AvailableFrom     *time.Time
	AvailableTo       *time.Time
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Offer, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	if cmd.PricePerKm.IsNegative() {
		return nil, fmt.Errorf("%w: price per km must not be negative", types.ErrValidation)
	}
	if cmd.AvailableFrom != nil && cmd.AvailableTo != nil && cmd.AvailableTo.Before(*cmd.AvailableFrom) {
		return nil, fmt.Errorf("%w: availability window ends before it starts", types.ErrValidation)
	}
	driver, err := s.actors.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(driver, actor.CapCreateTransport); err != nil {
		return nil, err
	}
	currency := cmd.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	regions := make([]string, 0, len(cmd.ServicedRegions))
	for _, r := range cmd.ServicedRegions {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, r)
		}
	}
	now := s.now()
	o := &Offer{
		ID:                types.NewID(),
		DriverID:          cmd.DriverID,
		VehicleType:       strings.TrimSpace(cmd.VehicleType),
		CapacityKg:        cmd.CapacityKg,
		PricePerKm:        cmd.PricePerKm,
		Currency:          currency,
		OriginCounty:      strings.TrimSpace(cmd.OriginCounty),
		DestinationCounty: strings.TrimSpace(cmd.DestinationCounty),
		ServicedRegions:   regions,
		AvailableFrom:     cmd.AvailableFrom,
		AvailableTo:       cmd.AvailableTo,
		Status:            StatusAvailable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, fanout.ActorChannel(o.DriverID), "transport_offer_created", o); err != nil {
		log.Printf("transport offer %s: publish: %v", o.ID, err)
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Offer, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Offer, error) {
	return s.store.List(ctx, f)
}

type SetStatusCommand struct {
	CallerID types.ID
	OfferID  types.ID
	Status   Status
}

// SetStatus lets the owning driver pause or resume an offer that is not booked.
func (s *Service) SetStatus(ctx context.Context, cmd SetStatusCommand) (*Offer, error) {
	if cmd.Status != StatusAvailable && cmd.Status != StatusUnavailable {
		return nil, fmt.Errorf("%w: drivers may only set available or unavailable", types.ErrValidation)
	}
	caller, err := s.actors.Get(ctx, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, cmd.OfferID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != caller.ID && !actor.HasCapability(caller, actor.CapManageAnyEntity) {
		return nil, fmt.Errorf("%w: offer %s is not owned by %s", types.ErrUnauthorized, o.ID, caller.ID)
	}
	if o.Status == StatusBooked || o.Status == StatusInTransit {
		return nil, fmt.Errorf("%w: offer %s is %s", types.ErrInvalidState, o.ID, o.Status)
	}
	now := s.now()
	if err := s.store.SetStatus(ctx, o.ID, cmd.Status, now); err != nil {
		return nil, err
	}
	o.Status = cmd.Status
	o.UpdatedAt = now
	return o, nil
}

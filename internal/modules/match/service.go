// README: Match lifecycle engine: guarded transitions, side effects and post-commit fanout.
package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/modules/actor"
	"agrimatch/internal/modules/demand"
	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/listing"
	"agrimatch/internal/modules/transport"
	"agrimatch/internal/types"
)

type MatchStore interface {
	Create(ctx context.Context, m *Match, ev *Event) error
	Get(ctx context.Context, id types.ID) (*Match, error)
	Apply(ctx context.Context, ch *Change) error
	Events(ctx context.Context, matchID types.ID) ([]Event, error)
	List(ctx context.Context, f Filter) ([]*Match, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Match, error)
}

type ListingReader interface {
	Get(ctx context.Context, id types.ID) (*listing.Listing, error)
	List(ctx context.Context, f listing.Filter) ([]*listing.Listing, error)
}

type DemandReader interface {
	Get(ctx context.Context, id types.ID) (*demand.Demand, error)
	List(ctx context.Context, f demand.Filter) ([]*demand.Demand, error)
}

type OfferReader interface {
	Get(ctx context.Context, id types.ID) (*transport.Offer, error)
	List(ctx context.Context, f transport.Filter) ([]*transport.Offer, error)
}

type ActorReader interface {
	Get(ctx context.Context, id types.ID) (*actor.Actor, error)
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*actor.Actor, error)
}

// DistanceEstimator returns the road distance between two places in km.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, from, to types.Location) (float64, error)
}

type Deps struct {
	Listings  ListingReader
	Demands   DemandReader
	Offers    OfferReader
	Actors    ActorReader
	Publisher fanout.Publisher
	Distance  DistanceEstimator
	// TTL is how long a match may stay open before the sweep expires it. Zero disables expiry.
	TTL time.Duration
}

type Service struct {
	store    MatchStore
	listings ListingReader
	demands  DemandReader
	offers   OfferReader
	actors   ActorReader
	pub      fanout.Publisher
	distance DistanceEstimator
	ttl      time.Duration
	now      func() time.Time
}

func NewService(store MatchStore, deps Deps) *Service {
	pub := deps.Publisher
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{
		store:    store,
		listings: deps.Listings,
		demands:  deps.Demands,
		offers:   deps.Offers,
		actors:   deps.Actors,
		pub:      pub,
		distance: deps.Distance,
		ttl:      deps.TTL,
		now:      time.Now,
	}
}

type CreateCommand struct {
	CallerID       types.ID `validate:"required"`
	ListingID      types.ID `validate:"required"`
	DemandID       types.ID `validate:"required"`
	AgreedPrice    *decimal.Decimal
	AgreedQuantity float64 `validate:"gte=0"`
	Note           string  `validate:"max=500"`
}

// ActionCommand drives every transition that needs nothing beyond the caller.
// ExpectedVersion, when set, must equal the stored version.
type ActionCommand struct {
	MatchID         types.ID
	CallerID        types.ID
	ExpectedVersion *int
	Note            string
}

type CounterOfferCommand struct {
	ActionCommand
	AgreedPrice    decimal.Decimal
	AgreedQuantity float64
}

type AssignDriverCommand struct {
	ActionCommand
	OfferID types.ID
}

// Notification is what subscribers receive for every committed event.
type Notification struct {
	Event   Event  `json:"event"`
	Status  Status `json:"status"`
	Version int    `json:"version"`
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Match, error) {
	if err := types.Validate(cmd); err != nil {
		return nil, err
	}
	if cmd.AgreedPrice != nil && cmd.AgreedPrice.IsNegative() {
		return nil, fmt.Errorf("%w: agreed price must not be negative", types.ErrValidation)
	}
	caller, err := s.actors.Get(ctx, cmd.CallerID)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(caller, actor.CapInitiateMatch); err != nil {
		return nil, err
	}
	l, err := s.listings.Get(ctx, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	d, err := s.demands.Get(ctx, cmd.DemandID)
	if err != nil {
		return nil, err
	}
	if caller.ID != l.FarmerID && caller.ID != d.BuyerID {
		return nil, fmt.Errorf("%w: only the listing or demand owner may start a match", types.ErrUnauthorized)
	}
	if l.FarmerID == d.BuyerID {
		return nil, fmt.Errorf("%w: listing and demand have the same owner", types.ErrValidation)
	}
	if !l.Open() {
		return nil, fmt.Errorf("%w: listing %s is %s", types.ErrInvalidState, l.ID, l.Status)
	}
	if !d.Open() {
		return nil, fmt.Errorf("%w: demand %s is %s", types.ErrInvalidState, d.ID, d.Status)
	}
	if !types.CropMatches(l.Crop, d.Crop) {
		return nil, fmt.Errorf("%w: crop %q does not match %q", types.ErrValidation, l.Crop, d.Crop)
	}
	available := math.Min(l.Remaining(), d.Remaining())
	qty := cmd.AgreedQuantity
	if qty == 0 {
		qty = available
	}
	if qty <= 0 || qty > available {
		return nil, fmt.Errorf("%w: agreed quantity %.2f exceeds available %.2f", types.ErrValidation, qty, available)
	}
	price := cmd.AgreedPrice
	if price == nil {
		price = l.Price
		if price == nil {
			price = d.PriceOffer
		}
	}
	currency := l.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}

	now := s.now()
	m := &Match{
		ID:                 types.NewID(),
		ListingID:          l.ID,
		DemandID:           d.ID,
		FarmerID:           l.FarmerID,
		BuyerID:            d.BuyerID,
		AgreedPrice:        price,
		Currency:           currency,
		AgreedQuantity:     qty,
		InitiatedBy:        caller.ID,
		DriverAssignment:   AssignmentNone,
		DriverCancellation: DriverCancellation{Status: CancellationNone},
		Status:             StatusRequested,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s.ttl > 0 {
		exp := now.Add(s.ttl)
		m.ExpiresAt = &exp
	}
	ev := NewEvent(m.ID, caller.ID, cmd.Note, Created{
		ListingID: l.ID, DemandID: d.ID, AgreedPrice: price, AgreedQuantity: qty,
	}, now)
	if err := s.store.Create(ctx, m, &ev); err != nil {
		return nil, err
	}
	s.publish(ctx, nil, m, ev)
	return m, nil
}

// Get returns a match visible to callerID.
func (s *Service) Get(ctx context.Context, callerID, id types.ID) (*Match, error) {
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(m, caller) {
		return nil, fmt.Errorf("%w: actor %s is not part of match %s", types.ErrUnauthorized, caller.ID, id)
	}
	return m, nil
}

func (s *Service) Events(ctx context.Context, callerID, id types.ID) ([]Event, error) {
	if _, err := s.Get(ctx, callerID, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

// List returns the caller's matches; admins may query any participant.
func (s *Service) List(ctx context.Context, callerID types.ID, f Filter) ([]*Match, error) {
	caller, err := s.actors.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(caller) {
		f.ParticipantID = caller.ID
	}
	return s.store.List(ctx, f)
}

func (s *Service) CounterOffer(ctx context.Context, cmd CounterOfferCommand) (*Match, error) {
	if cmd.AgreedPrice.IsNegative() || cmd.AgreedQuantity < 0 {
		return nil, fmt.Errorf("%w: counter offer must not be negative", types.ErrValidation)
	}
	m, caller, err := s.load(ctx, cmd.ActionCommand, StatusOffered)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(caller.ID) || caller.ID == m.InitiatedBy {
		return nil, fmt.Errorf("%w: only the counterparty may counter", types.ErrUnauthorized)
	}
	qty := m.AgreedQuantity
	if cmd.AgreedQuantity > 0 {
		l, d, err := s.sides(ctx, m)
		if err != nil {
			return nil, err
		}
		if cmd.AgreedQuantity > math.Min(l.Remaining(), d.Remaining()) {
			return nil, fmt.Errorf("%w: counter quantity exceeds what is available", types.ErrValidation)
		}
		qty = cmd.AgreedQuantity
	}
	now := s.now()
	next := advance(m, StatusOffered, now)
	price := cmd.AgreedPrice
	next.AgreedPrice = &price
	next.AgreedQuantity = qty
	ev := NewEvent(m.ID, caller.ID, cmd.Note, Offered{AgreedPrice: price, AgreedQuantity: qty}, now)
	return s.commit(ctx, m, next, ev, nil)
}

// Accept confirms the terms. A request is accepted by the party that did not
// start the match; a counter offer is accepted by the initiator.
func (s *Service) Accept(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusAccepted)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case StatusRequested:
		if !m.IsParty(caller.ID) || caller.ID == m.InitiatedBy {
			return nil, fmt.Errorf("%w: only the counterparty may accept a request", types.ErrUnauthorized)
		}
	case StatusOffered:
		if caller.ID != m.InitiatedBy {
			return nil, fmt.Errorf("%w: only the initiator may accept a counter offer", types.ErrUnauthorized)
		}
	default:
		return nil, invalidTransition(m.Status, StatusAccepted)
	}
	now := s.now()
	next := advance(m, StatusAccepted, now)
	next.AcceptedBy = caller.ID
	next.AcceptedAt = &now
	ev := NewEvent(m.ID, caller.ID, cmd.Note, Accepted{AcceptedBy: caller.ID}, now)
	return s.commit(ctx, m, next, ev, nil)
}

func (s *Service) AssignDriver(ctx context.Context, cmd AssignDriverCommand) (*Match, error) {
	if cmd.OfferID == "" {
		return nil, fmt.Errorf("%w: transport offer is required", types.ErrValidation)
	}
	m, caller, err := s.load(ctx, cmd.ActionCommand, StatusDriverAssigned)
	if err != nil {
		return nil, err
	}
	if !partyOrAdmin(m, caller) {
		return nil, fmt.Errorf("%w: only a party or admin may assign a driver", types.ErrUnauthorized)
	}
	o, err := s.offers.Get(ctx, cmd.OfferID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !o.AvailableAt(now) {
		return nil, fmt.Errorf("%w: transport offer %s is %s", types.ErrInvalidState, o.ID, o.Status)
	}
	if o.CapacityKg < m.AgreedQuantity {
		return nil, fmt.Errorf("%w: offer capacity %.0fkg is below %.0fkg", types.ErrValidation, o.CapacityKg, m.AgreedQuantity)
	}
	if m.IsParty(o.DriverID) {
		return nil, fmt.Errorf("%w: a party cannot drive its own match", types.ErrValidation)
	}
	next := advance(m, StatusDriverAssigned, now)
	next.DriverID = o.DriverID
	next.TransportOfferID = o.ID
	next.DriverAssignment = AssignmentPending
	next.DriverAssignedAt = &now
	next.DriverAcceptedAt = nil
	next.DriverRejectedAt = nil
	next.DriverCancellation = DriverCancellation{Status: CancellationNone}
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverAssigned{DriverID: o.DriverID, TransportOfferID: o.ID}, now)
	return s.commit(ctx, m, next, ev, nil, OfferChange{
		OfferID: o.ID, From: []transport.Status{transport.StatusAvailable}, To: transport.StatusBooked,
	})
}

func (s *Service) DriverAccept(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusDriverAccepted)
	if err != nil {
		return nil, err
	}
	if caller.ID != m.DriverID {
		return nil, fmt.Errorf("%w: only the assigned driver may accept", types.ErrUnauthorized)
	}
	now := s.now()
	next := advance(m, StatusDriverAccepted, now)
	next.DriverAssignment = AssignmentAccepted
	next.DriverAcceptedAt = &now
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverAccepted{DriverID: caller.ID}, now)
	return s.commit(ctx, m, next, ev, nil)
}

func (s *Service) DriverReject(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusDriverRejected)
	if err != nil {
		return nil, err
	}
	if caller.ID != m.DriverID {
		return nil, fmt.Errorf("%w: only the assigned driver may reject", types.ErrUnauthorized)
	}
	now := s.now()
	next := advance(m, StatusDriverRejected, now)
	next.DriverAssignment = AssignmentRejected
	next.DriverRejectedAt = &now
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverRejected{DriverID: caller.ID, Reason: cmd.Note}, now)
	return s.commit(ctx, m, next, ev, nil, release(m.TransportOfferID, transport.StatusBooked))
}

// Reopen returns a match whose driver declined to accepted so a new driver can be assigned.
func (s *Service) Reopen(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusAccepted)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusDriverRejected {
		return nil, invalidTransition(m.Status, StatusAccepted)
	}
	if !partyOrAdmin(m, caller) {
		return nil, fmt.Errorf("%w: only a party or admin may reopen", types.ErrUnauthorized)
	}
	now := s.now()
	next := advance(m, StatusAccepted, now)
	clearDriver(next)
	ev := NewEvent(m.ID, caller.ID, cmd.Note, Reopened{PreviousDriverID: m.DriverID}, now)
	return s.commit(ctx, m, next, ev, nil)
}

func (s *Service) StartTransit(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusInTransit)
	if err != nil {
		return nil, err
	}
	if m.DriverAssignment != AssignmentAccepted {
		return nil, fmt.Errorf("%w: driver has not accepted", types.ErrInvalidState)
	}
	if m.DriverCancellation.Status == CancellationPending {
		return nil, fmt.Errorf("%w: driver cancellation is pending", types.ErrInvalidState)
	}
	if caller.ID != m.DriverID && !m.IsParty(caller.ID) {
		return nil, fmt.Errorf("%w: only the driver or a party may confirm pickup", types.ErrUnauthorized)
	}
	now := s.now()
	next := advance(m, StatusInTransit, now)
	next.InTransitAt = &now
	ev := NewEvent(m.ID, caller.ID, cmd.Note, InTransit{DriverID: m.DriverID}, now)
	return s.commit(ctx, m, next, ev, nil, OfferChange{
		OfferID: m.TransportOfferID, From: []transport.Status{transport.StatusBooked}, To: transport.StatusInTransit,
	})
}

// settleEpsilon absorbs float drift when comparing settled quantities.
const settleEpsilon = 1e-9

// Complete confirms delivery and settles the delivered quantity against the
// listing and the demand in the same write.
func (s *Service) Complete(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if caller.ID != m.DriverID && !m.IsParty(caller.ID) {
		return nil, fmt.Errorf("%w: only the driver or a party may confirm delivery", types.ErrUnauthorized)
	}
	l, d, err := s.sides(ctx, m)
	if err != nil {
		return nil, err
	}
	fulfilled := math.Min(m.AgreedQuantity, math.Min(l.Remaining(), d.Remaining()))
	if fulfilled <= settleEpsilon {
		return nil, fmt.Errorf("%w: listing %s or demand %s has nothing left to settle", types.ErrInvalidState, l.ID, d.ID)
	}
	now := s.now()
	next := advance(m, StatusCompleted, now)
	next.QuantityFulfilled = fulfilled
	next.IsPartialFulfillment = fulfilled < l.Remaining()-settleEpsilon || fulfilled < d.Remaining()-settleEpsilon
	next.CompletedAt = &now
	done := Completed{QuantityFulfilled: fulfilled, Partial: next.IsPartialFulfillment}
	if short := m.AgreedQuantity - fulfilled; short > settleEpsilon {
		done.Shortfall = short
	}
	ev := NewEvent(m.ID, caller.ID, cmd.Note, done, now)
	settle := &Settlement{ListingID: l.ID, DemandID: d.ID, Quantity: fulfilled}
	return s.commit(ctx, m, next, ev, settle,
		release(m.TransportOfferID, transport.StatusInTransit, transport.StatusBooked))
}

// Cancel is allowed from every non-terminal state.
func (s *Service) Cancel(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.load(ctx, cmd, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !partyOrAdmin(m, caller) {
		return nil, fmt.Errorf("%w: only a party or admin may cancel", types.ErrUnauthorized)
	}
	now := s.now()
	next := advance(m, StatusCancelled, now)
	next.CancelledAt = &now
	next.CancelReason = cmd.Note
	ev := NewEvent(m.ID, caller.ID, cmd.Note, Cancelled{From: m.Status, Reason: cmd.Note}, now)
	return s.commit(ctx, m, next, ev, nil, releaseEngaged(m)...)
}

// Expire moves a match past its deadline to expired on behalf of the system.
func (s *Service) Expire(ctx context.Context, id types.ID, now time.Time) (*Match, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(m.Status) {
		return nil, terminal(m)
	}
	if m.ExpiresAt == nil || !m.ExpiresAt.Before(now) {
		return nil, fmt.Errorf("%w: match %s has not expired", types.ErrInvalidState, id)
	}
	next := advance(m, StatusExpired, now)
	ev := NewEvent(m.ID, "", "", Expired{From: m.Status}, now)
	return s.commit(ctx, m, next, ev, nil, releaseEngaged(m)...)
}

// ExpireDue expires every overdue match it can; matches that moved on
// concurrently are skipped.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpirable(ctx, now, 500)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range due {
		if _, err := s.Expire(ctx, m.ID, now); err != nil {
			if errors.Is(err, types.ErrConflict) || errors.Is(err, types.ErrTerminalState) || errors.Is(err, types.ErrInvalidState) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) RequestDriverCancellation(ctx context.Context, cmd ActionCommand) (*Match, error) {
	if strings.TrimSpace(cmd.Note) == "" {
		return nil, fmt.Errorf("%w: a reason is required", types.ErrValidation)
	}
	m, caller, err := s.load(ctx, cmd, "")
	if err != nil {
		return nil, err
	}
	if m.Status != StatusDriverAccepted && m.Status != StatusInTransit {
		return nil, fmt.Errorf("%w: driver cancellation is not possible from %s", types.ErrInvalidTransition, m.Status)
	}
	if caller.ID != m.DriverID {
		return nil, fmt.Errorf("%w: only the assigned driver may ask to be released", types.ErrUnauthorized)
	}
	if m.DriverCancellation.Status == CancellationPending {
		return nil, fmt.Errorf("%w: a cancellation request is already pending", types.ErrInvalidState)
	}
	now := s.now()
	next := advance(m, m.Status, now)
	next.DriverCancellation = DriverCancellation{Status: CancellationPending, Reason: cmd.Note, RequestedAt: &now}
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverCancelRequested{DriverID: caller.ID, Reason: cmd.Note}, now)
	return s.commit(ctx, m, next, ev, nil)
}

// ApproveDriverCancellation releases the driver and returns the match to accepted.
func (s *Service) ApproveDriverCancellation(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.loadPendingCancellation(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !CanTransition(m.Status, StatusAccepted) {
		return nil, invalidTransition(m.Status, StatusAccepted)
	}
	now := s.now()
	next := advance(m, StatusAccepted, now)
	clearDriver(next)
	next.InTransitAt = nil
	next.DriverCancellation.Status = CancellationApproved
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverCancelApproved{DriverID: m.DriverID}, now)
	return s.commit(ctx, m, next, ev, nil, releaseEngaged(m)...)
}

func (s *Service) RejectDriverCancellation(ctx context.Context, cmd ActionCommand) (*Match, error) {
	m, caller, err := s.loadPendingCancellation(ctx, cmd)
	if err != nil {
		return nil, err
	}
	now := s.now()
	next := advance(m, m.Status, now)
	next.DriverCancellation.Status = CancellationRejected
	ev := NewEvent(m.ID, caller.ID, cmd.Note, DriverCancelRejected{DriverID: m.DriverID}, now)
	return s.commit(ctx, m, next, ev, nil)
}

func (s *Service) loadPendingCancellation(ctx context.Context, cmd ActionCommand) (*Match, *actor.Actor, error) {
	m, caller, err := s.load(ctx, cmd, "")
	if err != nil {
		return nil, nil, err
	}
	if m.DriverCancellation.Status != CancellationPending {
		return nil, nil, fmt.Errorf("%w: no pending driver cancellation on match %s", types.ErrInvalidState, m.ID)
	}
	if !partyOrAdmin(m, caller) {
		return nil, nil, fmt.Errorf("%w: only a party or admin may decide a driver cancellation", types.ErrUnauthorized)
	}
	return m, caller, nil
}

// load reads the caller and the match and applies the checks shared by every
// transition: version, terminal state, then the legal graph when to is set.
func (s *Service) load(ctx context.Context, cmd ActionCommand, to Status) (*Match, *actor.Actor, error) {
	caller, err := s.actors.Get(ctx, cmd.CallerID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.store.Get(ctx, cmd.MatchID)
	if err != nil {
		return nil, nil, err
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != m.Version {
		return nil, nil, fmt.Errorf("%w: match %s is at version %d, not %d", types.ErrConflict, m.ID, m.Version, *cmd.ExpectedVersion)
	}
	if IsTerminal(m.Status) {
		return nil, nil, terminal(m)
	}
	if to != "" && !CanTransition(m.Status, to) {
		return nil, nil, invalidTransition(m.Status, to)
	}
	return m, caller, nil
}

func (s *Service) sides(ctx context.Context, m *Match) (*listing.Listing, *demand.Demand, error) {
	l, err := s.listings.Get(ctx, m.ListingID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.demands.Get(ctx, m.DemandID)
	if err != nil {
		return nil, nil, err
	}
	return l, d, nil
}

func (s *Service) commit(ctx context.Context, prev, next *Match, ev Event, settle *Settlement, offers ...OfferChange) (*Match, error) {
	ch := &Change{Match: next, ExpectedVersion: prev.Version, Event: ev, Settlement: settle}
	for _, oc := range offers {
		if oc.OfferID != "" {
			ch.Offers = append(ch.Offers, oc)
		}
	}
	if err := s.store.Apply(ctx, ch); err != nil {
		return nil, err
	}
	s.publish(ctx, prev, next, ch.Event)
	return next, nil
}

// publish fans a committed event out to the match channel and to everyone
// involved before or after the change. Failures are logged; the write stands.
func (s *Service) publish(ctx context.Context, prev, next *Match, ev Event) {
	n := Notification{Event: ev, Status: next.Status, Version: next.Version}
	event := string(ev.Kind)
	if err := s.pub.Publish(ctx, fanout.MatchChannel(next.ID), event, n); err != nil {
		log.Printf("match %s: publish %s: %v", next.ID, event, err)
	}
	seen := map[types.ID]bool{}
	var ids []types.ID
	if prev != nil {
		ids = append(ids, prev.Participants()...)
	}
	ids = append(ids, next.Participants()...)
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := s.pub.Publish(ctx, fanout.ActorChannel(id), event, n); err != nil {
			log.Printf("match %s: publish %s to %s: %v", next.ID, event, id, err)
		}
	}
}

func advance(m *Match, to Status, now time.Time) *Match {
	next := m.clone()
	next.Status = to
	next.Version = m.Version + 1
	next.UpdatedAt = now
	return next
}

func clearDriver(m *Match) {
	m.DriverID = ""
	m.TransportOfferID = ""
	m.DriverAssignment = AssignmentNone
}

func release(offerID types.ID, from ...transport.Status) OfferChange {
	return OfferChange{OfferID: offerID, From: from, To: transport.StatusAvailable}
}

// releaseEngaged frees the offer of a driver still attached to m.
func releaseEngaged(m *Match) []OfferChange {
	if !m.DriverEngaged() || m.TransportOfferID == "" {
		return nil
	}
	return []OfferChange{release(m.TransportOfferID, transport.StatusBooked, transport.StatusInTransit)}
}

func isAdmin(a *actor.Actor) bool {
	return actor.HasCapability(a, actor.CapManageAnyEntity)
}

func partyOrAdmin(m *Match, a *actor.Actor) bool {
	return m.IsParty(a.ID) || isAdmin(a)
}

func canView(m *Match, a *actor.Actor) bool {
	return partyOrAdmin(m, a) || (a.ID != "" && a.ID == m.DriverID)
}

func terminal(m *Match) error {
	return fmt.Errorf("%w: match %s is %s", types.ErrTerminalState, m.ID, m.Status)
}

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to)
}

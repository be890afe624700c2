// README: Match event log entries. Each kind carries its own typed payload.
package match

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type EventKind string

const (
	EventCreated               EventKind = "created"
	EventOffered               EventKind = "offered"
	EventAccepted              EventKind = "accepted"
	EventCancelled             EventKind = "cancelled"
	EventDriverAssigned        EventKind = "driver_assigned"
	EventDriverAccepted        EventKind = "driver_accepted"
	EventDriverRejected        EventKind = "driver_rejected"
	EventReopened              EventKind = "reopened"
	EventInTransit             EventKind = "in_transit"
	EventCompleted             EventKind = "completed"
	EventExpired               EventKind = "expired"
	EventDriverCancelRequested EventKind = "driver_cancel_requested"
	EventDriverCancelApproved  EventKind = "driver_cancel_approved"
	EventDriverCancelRejected  EventKind = "driver_cancel_rejected"
	EventMessage               EventKind = "message"
	EventRated                 EventKind = "rated"
)

// Payload is implemented only by the payload types in this file.
type Payload interface {
	Kind() EventKind
	isPayload()
}

type sealed struct{}

func (sealed) isPayload() {}

type Created struct {
	sealed
	ListingID      types.ID         `json:"listing_id"`
	DemandID       types.ID         `json:"demand_id"`
	AgreedPrice    *decimal.Decimal `json:"agreed_price,omitempty"`
	AgreedQuantity float64          `json:"agreed_quantity"`
}

type Offered struct {
	sealed
	AgreedPrice    decimal.Decimal `json:"agreed_price"`
	AgreedQuantity float64         `json:"agreed_quantity"`
}

type Accepted struct {
	sealed
	AcceptedBy types.ID `json:"accepted_by"`
}

type Cancelled struct {
	sealed
	From   Status `json:"from"`
	Reason string `json:"reason,omitempty"`
}

type DriverAssigned struct {
	sealed
	DriverID         types.ID `json:"driver_id"`
	TransportOfferID types.ID `json:"transport_offer_id"`
}

type DriverAccepted struct {
	sealed
	DriverID types.ID `json:"driver_id"`
}

type DriverRejected struct {
	sealed
	DriverID types.ID `json:"driver_id"`
	Reason   string   `json:"reason,omitempty"`
}

type Reopened struct {
	sealed
	PreviousDriverID types.ID `json:"previous_driver_id"`
}

type InTransit struct {
	sealed
	DriverID types.ID `json:"driver_id"`
}

type Completed struct {
	sealed
	QuantityFulfilled float64 `json:"quantity_fulfilled"`
	Partial           bool    `json:"partial"`
	Shortfall         float64 `json:"shortfall,omitempty"`
}

type Expired struct {
	sealed
	From Status `json:"from"`
}

type DriverCancelRequested struct {
	sealed
	DriverID types.ID `json:"driver_id"`
	Reason   string   `json:"reason"`
}

type DriverCancelApproved struct {
	sealed
	DriverID types.ID `json:"driver_id"`
}

type DriverCancelRejected struct {
	sealed
	DriverID types.ID `json:"driver_id"`
}

type MessageSent struct {
	sealed
	MessageID   types.ID `json:"message_id"`
	RecipientID types.ID `json:"recipient_id"`
}

type Rated struct {
	sealed
	ReviewID   types.ID `json:"review_id"`
	RevieweeID types.ID `json:"reviewee_id"`
	Rating     int      `json:"rating"`
}

func (Created) Kind() EventKind               { return EventCreated }
func (Offered) Kind() EventKind               { return EventOffered }
func (Accepted) Kind() EventKind              { return EventAccepted }
func (Cancelled) Kind() EventKind             { return EventCancelled }
func (DriverAssigned) Kind() EventKind        { return EventDriverAssigned }
func (DriverAccepted) Kind() EventKind        { return EventDriverAccepted }
func (DriverRejected) Kind() EventKind        { return EventDriverRejected }
func (Reopened) Kind() EventKind              { return EventReopened }
func (InTransit) Kind() EventKind             { return EventInTransit }
func (Completed) Kind() EventKind             { return EventCompleted }
func (Expired) Kind() EventKind               { return EventExpired }
func (DriverCancelRequested) Kind() EventKind { return EventDriverCancelRequested }
func (DriverCancelApproved) Kind() EventKind  { return EventDriverCancelApproved }
func (DriverCancelRejected) Kind() EventKind  { return EventDriverCancelRejected }
func (MessageSent) Kind() EventKind           { return EventMessage }
func (Rated) Kind() EventKind                 { return EventRated }

// Event is one immutable entry in a match's audit trail. ActorID is empty
// for system actions such as expiry.
type Event struct {
	Seq     int64     `json:"seq"`
	MatchID types.ID  `json:"match_id"`
	ActorID types.ID  `json:"actor_id,omitempty"`
	Kind    EventKind `json:"kind"`
	Note    string    `json:"note,omitempty"`
	Payload Payload   `json:"payload"`
	At      time.Time `json:"at"`
}

func NewEvent(matchID, actorID types.ID, note string, p Payload, at time.Time) Event {
	return Event{MatchID: matchID, ActorID: actorID, Kind: p.Kind(), Note: note, Payload: p, At: at}
}

func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload restores the typed payload stored for kind.
func DecodePayload(kind EventKind, raw []byte) (Payload, error) {
	var p Payload
	switch kind {
	case EventCreated:
		p = &Created{}
	case EventOffered:
		p = &Offered{}
	case EventAccepted:
		p = &Accepted{}
	case EventCancelled:
		p = &Cancelled{}
	case EventDriverAssigned:
		p = &DriverAssigned{}
	case EventDriverAccepted:
		p = &DriverAccepted{}
	case EventDriverRejected:
		p = &DriverRejected{}
	case EventReopened:
		p = &Reopened{}
	case EventInTransit:
		p = &InTransit{}
	case EventCompleted:
		p = &Completed{}
	case EventExpired:
		p = &Expired{}
	case EventDriverCancelRequested:
		p = &DriverCancelRequested{}
	case EventDriverCancelApproved:
		p = &DriverCancelApproved{}
	case EventDriverCancelRejected:
		p = &DriverCancelRejected{}
	case EventMessage:
		p = &MessageSent{}
	case EventRated:
		p = &Rated{}
	default:
		return nil, fmt.Errorf("match: unknown event kind %q", kind)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("match: decode %s payload: %w", kind, err)
		}
	}
	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Created:
		return *v
	case *Offered:
		return *v
	case *Accepted:
		return *v
	case *Cancelled:
		return *v
	case *DriverAssigned:
		return *v
	case *DriverAccepted:
		return *v
	case *DriverRejected:
		return *v
	case *Reopened:
		return *v
	case *InTransit:
		return *v
	case *Completed:
		return *v
	case *Expired:
		return *v
	case *DriverCancelRequested:
		return *v
	case *DriverCancelApproved:
		return *v
	case *DriverCancelRejected:
		return *v
	case *MessageSent:
		return *v
	case *Rated:
		return *v
	}
	return p
}

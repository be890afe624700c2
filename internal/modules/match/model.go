// README: Match aggregate, lifecycle states and the legal transition graph.
package match

import (
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type Status string

const (
	StatusRequested      Status = "requested"
	StatusOffered        Status = "offered"
	StatusAccepted       Status = "accepted"
	StatusDriverAssigned Status = "driver_assigned"
	StatusDriverAccepted Status = "driver_accepted"
	StatusDriverRejected Status = "driver_rejected"
	StatusInTransit      Status = "in_transit"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

type DriverAssignment string

const (
	AssignmentNone     DriverAssignment = "none"
	AssignmentPending  DriverAssignment = "pending"
	AssignmentAccepted DriverAssignment = "accepted"
	AssignmentRejected DriverAssignment = "rejected"
)

type CancellationStatus string

const (
	CancellationNone     CancellationStatus = "none"
	CancellationPending  CancellationStatus = "pending"
	CancellationApproved CancellationStatus = "approved"
	CancellationRejected CancellationStatus = "rejected"
)

// DriverCancellation is the driver's request to be released from a match.
type DriverCancellation struct {
	Status      CancellationStatus `json:"status"`
	Reason      string             `json:"reason"`
	RequestedAt *time.Time         `json:"requested_at,omitempty"`
}

type Match struct {
	ID                   types.ID           `json:"id"`
	ListingID            types.ID           `json:"listing_id"`
	DemandID             types.ID           `json:"demand_id"`
	FarmerID             types.ID           `json:"farmer_id"`
	BuyerID              types.ID           `json:"buyer_id"`
	AgreedPrice          *decimal.Decimal   `json:"agreed_price,omitempty"`
	Currency             string             `json:"currency"`
	AgreedQuantity       float64            `json:"agreed_quantity"`
	InitiatedBy          types.ID           `json:"initiated_by"`
	AcceptedBy           types.ID           `json:"accepted_by"`
	DriverID             types.ID           `json:"driver_id"`
	TransportOfferID     types.ID           `json:"transport_offer_id"`
	DriverAssignment     DriverAssignment   `json:"driver_assignment"`
	DriverCancellation   DriverCancellation `json:"driver_cancellation"`
	QuantityFulfilled    float64            `json:"quantity_fulfilled"`
	IsPartialFulfillment bool               `json:"is_partial_fulfillment"`
	FarmerRating         *int               `json:"farmer_rating,omitempty"`
	BuyerRating          *int               `json:"buyer_rating,omitempty"`
	Status               Status             `json:"status"`
	Version              int                `json:"version"`
	CancelReason         string             `json:"cancel_reason"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	ExpiresAt            *time.Time         `json:"expires_at,omitempty"`
	AcceptedAt           *time.Time         `json:"accepted_at,omitempty"`
	DriverAssignedAt     *time.Time         `json:"driver_assigned_at,omitempty"`
	DriverAcceptedAt     *time.Time         `json:"driver_accepted_at,omitempty"`
	DriverRejectedAt     *time.Time         `json:"driver_rejected_at,omitempty"`
	InTransitAt          *time.Time         `json:"in_transit_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
}

// AllowedTransitions is the lifecycle graph. Terminal states have no entry.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:      {StatusOffered, StatusAccepted, StatusCancelled, StatusExpired},
	StatusOffered:        {StatusAccepted, StatusCancelled, StatusExpired},
	StatusAccepted:       {StatusDriverAssigned, StatusCancelled, StatusExpired},
	StatusDriverAssigned: {StatusDriverAccepted, StatusDriverRejected, StatusCancelled, StatusExpired},
	StatusDriverAccepted: {StatusInTransit, StatusAccepted, StatusCancelled, StatusExpired},
	StatusDriverRejected: {StatusAccepted, StatusCancelled, StatusExpired},
	StatusInTransit:      {StatusCompleted, StatusAccepted, StatusCancelled, StatusExpired},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// IsParty reports whether id is the farmer or the buyer.
func (m *Match) IsParty(id types.ID) bool {
	return id != "" && (id == m.FarmerID || id == m.BuyerID)
}

// OtherParty returns the farmer for the buyer and vice versa.
func (m *Match) OtherParty(id types.ID) types.ID {
	switch id {
	case m.FarmerID:
		return m.BuyerID
	case m.BuyerID:
		return m.FarmerID
	}
	return ""
}

// DriverEngaged reports whether the assigned driver currently takes part in the match.
func (m *Match) DriverEngaged() bool {
	return m.DriverID != "" && (m.DriverAssignment == AssignmentPending || m.DriverAssignment == AssignmentAccepted)
}

// Participants lists everyone who should hear about the match.
func (m *Match) Participants() []types.ID {
	out := []types.ID{m.FarmerID, m.BuyerID}
	if m.DriverEngaged() {
		out = append(out, m.DriverID)
	}
	return out
}

func (m *Match) clone() *Match {
	c := *m
	return &c
}

type Filter struct {
	ParticipantID types.ID
	ListingID     types.ID
	DemandID      types.ID
	Status        Status
	Limit         int
}

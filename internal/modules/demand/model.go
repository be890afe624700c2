// README: Demand (buy request) aggregate, urgency levels and status definitions.
package demand

import (
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusFulfilled Status = "fulfilled"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

type Demand struct {
	ID                types.ID         `json:"id"`
	BuyerID           types.ID         `json:"buyer_id"`
	Crop              string           `json:"crop"`
	Quantity          float64          `json:"quantity"`
	QuantityFulfilled float64          `json:"quantity_fulfilled"`
	PriceOffer        *decimal.Decimal `json:"price_offer,omitempty"`
	Currency          string           `json:"currency"`
	Urgency           Urgency          `json:"urgency"`
	Description       string           `json:"description"`
	Location          types.Location   `json:"location"`
	Status            Status           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
}

func (d *Demand) Remaining() float64 {
	r := d.Quantity - d.QuantityFulfilled
	if r < 0 {
		return 0
	}
	return r
}

func (d *Demand) Open() bool {
	return d.Status == StatusOpen
}

type Filter struct {
	Crop    string
	County  string
	Status  Status
	Urgency Urgency
	BuyerID types.ID
	Since   *time.Time
	Until   *time.Time
	Limit   int
}

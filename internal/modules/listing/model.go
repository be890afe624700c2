// README: Listing (supply offer) aggregate and status definitions.
package listing

import (
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusMatched   Status = "matched"
	StatusSold      Status = "sold"
	StatusExpired   Status = "expired"
)

type Listing struct {
	ID                types.ID         `json:"id"`
	FarmerID          types.ID         `json:"farmer_id"`
	Crop              string           `json:"crop"`
	Quantity          float64          `json:"quantity"`
	QuantityFulfilled float64          `json:"quantity_fulfilled"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Currency          string           `json:"currency"`
	Negotiable        bool             `json:"negotiable"`
	Description       string           `json:"description"`
	Location          types.Location   `json:"location"`
	Promoted          bool             `json:"promoted"`
	Status            Status           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
}

// Remaining is the quantity still open for new matches.
func (l *Listing) Remaining() float64 {
	r := l.Quantity - l.QuantityFulfilled
	if r < 0 {
		return 0
	}
	return r
}

func (l *Listing) Open() bool {
	return l.Status == StatusAvailable
}

// Filter narrows List queries; zero fields are ignored.
type Filter struct {
	Crop     string
	County   string
	Status   Status
	FarmerID types.ID
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

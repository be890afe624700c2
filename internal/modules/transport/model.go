// README: Transport offer (driver capacity) aggregate and status definitions.
package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"agrimatch/internal/types"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBooked      Status = "booked"
	StatusInTransit   Status = "in_transit"
	StatusUnavailable Status = "unavailable"
)

type Offer struct {
	ID                types.ID        `json:"id"`
	DriverID          types.ID        `json:"driver_id"`
	VehicleType       string          `json:"vehicle_type"`
	CapacityKg        float64         `json:"capacity_kg"`
	PricePerKm        decimal.Decimal `json:"price_per_km"`
	Currency          string          `json:"currency"`
	OriginCounty      string          `json:"origin_county"`
	DestinationCounty string          `json:"destination_county"`
	ServicedRegions   []string        `json:"serviced_regions,omitempty"`
	AvailableFrom     *time.Time      `json:"available_from,omitempty"`
	AvailableTo       *time.Time      `json:"available_to,omitempty"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AvailableAt reports whether the offer can be booked at t.
func (o *Offer) AvailableAt(t time.Time) bool {
	if o.Status != StatusAvailable {
		return false
	}
	if o.AvailableFrom != nil && t.Before(*o.AvailableFrom) {
		return false
	}
	if o.AvailableTo != nil && t.After(*o.AvailableTo) {
		return false
	}
	return true
}

// Serves reports whether the offer covers county as origin, destination or a serviced region.
func (o *Offer) Serves(county string) bool {
	if county == "" {
		return false
	}
	if types.SameCounty(o.OriginCounty, county) || types.SameCounty(o.DestinationCounty, county) {
		return true
	}
	for _, r := range o.ServicedRegions {
		if types.SameCounty(r, county) {
			return true
		}
	}
	return false
}

type Filter struct {
	DriverID types.ID
	Status   Status
	County   string
	Limit    int
}

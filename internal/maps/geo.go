// README: Great-circle fallback estimator and estimator chaining.
package maps

import (
	"context"
	"fmt"
	"log"
	"math"

	"agrimatch/internal/types"
)

const earthRadiusKm = 6371.0

// roadFactor inflates straight-line distance towards a typical road distance.
const roadFactor = 1.3

// HaversineKm returns the great-circle distance in kilometres between two points.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Haversine estimates road distance from coordinates alone. Both locations need a point.
type Haversine struct{}

func (Haversine) DistanceKm(_ context.Context, from, to types.Location) (float64, error) {
	if from.Point.IsZero() || to.Point.IsZero() {
		return 0, fmt.Errorf("%w: coordinates required for straight-line estimate", types.ErrValidation)
	}
	return HaversineKm(from.Point, to.Point) * roadFactor, nil
}

type Estimator interface {
	DistanceKm(ctx context.Context, from, to types.Location) (float64, error)
}

// Fallback asks each estimator in turn and returns the first answer.
type Fallback []Estimator

func (f Fallback) DistanceKm(ctx context.Context, from, to types.Location) (float64, error) {
	var last error
	for i, e := range f {
		if e == nil {
			continue
		}
		km, err := e.DistanceKm(ctx, from, to)
		if err == nil {
			return km, nil
		}
		if i < len(f)-1 {
			log.Printf("maps: estimator %d failed, trying next: %v", i, err)
		}
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no distance estimator configured")
	}
	return 0, last
}

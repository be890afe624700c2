package maps

import (
	"context"
	"errors"
	"math"
	"testing"

	"googlemaps.github.io/maps"

	"agrimatch/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{"same point", types.Point{Lat: -1.2921, Lng: 36.8219}, types.Point{Lat: -1.2921, Lng: 36.8219}, 0, 0.001},
		{"Nairobi to Nakuru (~140km)", types.Point{Lat: -1.2921, Lng: 36.8219}, types.Point{Lat: -0.3031, Lng: 36.0800}, 137, 10},
		{"Nairobi to Mombasa (~440km)", types.Point{Lat: -1.2921, Lng: 36.8219}, types.Point{Lat: -4.0435, Lng: 39.6682}, 440, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

type fakeDirections struct {
	req    *maps.DirectionsRequest
	routes []maps.Route
	err    error
}

func (f *fakeDirections) Directions(_ context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.req = r
	return f.routes, nil, f.err
}

func TestRouteServiceDistance(t *testing.T) {
	fake := &fakeDirections{routes: []maps.Route{{Legs: []*maps.Leg{
		{Distance: maps.Distance{Meters: 60000}},
		{Distance: maps.Distance{Meters: 2500}},
	}}}}
	svc := NewRouteServiceWithClient(fake)

	km, err := svc.DistanceKm(context.Background(),
		types.Location{County: "Kiambu"},
		types.Location{Point: types.Point{Lat: -1.5, Lng: 37.2}})
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if km != 62.5 {
		t.Fatalf("expected 62.5km, got %v", km)
	}
	if fake.req.Origin != "Kiambu County, Kenya" || fake.req.Mode != maps.TravelModeDriving {
		t.Fatalf("unexpected request %+v", fake.req)
	}

	fake.routes = nil
	if _, err := svc.DistanceKm(context.Background(), types.Location{County: "a"}, types.Location{County: "b"}); err == nil {
		t.Fatalf("expected error for empty route list")
	}
	if _, err := svc.DistanceKm(context.Background(), types.Location{}, types.Location{County: "b"}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error for empty location, got %v", err)
	}
}

func TestFallback(t *testing.T) {
	nairobi := types.Location{County: "Nairobi", Point: types.Point{Lat: -1.2921, Lng: 36.8219}}
	nakuru := types.Location{County: "Nakuru", Point: types.Point{Lat: -0.3031, Lng: 36.0800}}

	broken := NewRouteServiceWithClient(&fakeDirections{err: errors.New("quota exceeded")})
	km, err := Fallback{broken, Haversine{}}.DistanceKm(context.Background(), nairobi, nakuru)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if want := HaversineKm(nairobi.Point, nakuru.Point) * roadFactor; km != want {
		t.Fatalf("expected haversine estimate %v, got %v", want, km)
	}

	if _, err := (Fallback{broken, Haversine{}}).DistanceKm(context.Background(), types.Location{County: "Nairobi"}, nakuru); err == nil {
		t.Fatalf("expected error when every estimator fails")
	}
	if _, err := (Fallback{}).DistanceKm(context.Background(), nairobi, nakuru); err == nil {
		t.Fatalf("expected error with no estimators")
	}
}

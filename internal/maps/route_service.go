package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"agrimatch/internal/types"
)

// DirectionsClient is the slice of the Google Maps client RouteService needs.
type DirectionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService estimates road distances with the Google Maps Directions API.
type RouteService struct {
	client DirectionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

func NewRouteServiceWithClient(client DirectionsClient) *RouteService {
	return &RouteService{client: client}
}

// DistanceKm returns the driving distance of the first suggested route.
func (s *RouteService) DistanceKm(ctx context.Context, from, to types.Location) (float64, error) {
	origin, err := waypoint(from)
	if err != nil {
		return 0, err
	}
	destination, err := waypoint(to)
	if err != nil {
		return 0, err
	}
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Region:      "KE",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found from %s to %s", origin, destination)
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000, nil
}

// waypoint prefers coordinates and falls back to the county name.
func waypoint(l types.Location) (string, error) {
	if !l.Point.IsZero() {
		return fmt.Sprintf("%f,%f", l.Point.Lat, l.Point.Lng), nil
	}
	if c := strings.TrimSpace(l.County); c != "" {
		return c + " County, Kenya", nil
	}
	return "", fmt.Errorf("%w: location has neither coordinates nor county", types.ErrValidation)
}

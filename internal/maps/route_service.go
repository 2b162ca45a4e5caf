// README: Google Maps routing adapter. Refines the distance-based
// pickup ETA with a driven route when an API key is configured.
package maps

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"

	"savari/internal/types"
)

type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// PickupETAMinutes returns the driving time from the driver's position to
// the pickup point, rounded up to whole minutes.
func (s *RouteService) PickupETAMinutes(ctx context.Context, from, to types.Point) (int, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
		Region:      "PK",
	}
	routes, _, err := s.client.Directions(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}
	leg := routes[0].Legs[0]
	return int(math.Ceil(leg.Duration.Minutes())), nil
}

// README: Driver presence view consumed by matching and bidding discovery.
// Written by the external driver-management service, read-only here.
package geo

import (
	"context"
	"time"

	"savari/internal/types"
)

type Presence struct {
	DriverID    types.ID
	Position    types.Point
	VehicleType string
	Seats       int
	Online      bool
	Approved    bool
	UpdatedAt   time.Time
}

// Filter narrows a Nearby query. Zero values match everything.
type Filter struct {
	VehicleType string
	MinSeats    int
}

// Candidate is a presence annotated with its great-circle distance to the
// query center, in kilometres.
type Candidate struct {
	Presence
	DistanceKm float64
}

// Index answers "who is within radius R of point P". An empty result is
// the normal no-nearby-drivers outcome, never an error.
type Index interface {
	Upsert(ctx context.Context, p Presence) error
	Remove(ctx context.Context, driverID types.ID) error
	Get(ctx context.Context, driverID types.ID) (Presence, bool, error)
	Nearby(ctx context.Context, center types.Point, radiusKm float64, f Filter, limit int) ([]Candidate, error)
}

func (f Filter) matches(p Presence) bool {
	if !p.Online || !p.Approved {
		return false
	}
	if f.VehicleType != "" && p.VehicleType != f.VehicleType {
		return false
	}
	if f.MinSeats > 0 && p.Seats < f.MinSeats {
		return false
	}
	return true
}

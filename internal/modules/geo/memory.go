// README: In-process presence index. Bounding-rectangle prefilter, then
// haversine circle check, sorted ascending by distance.
package geo

import (
	"context"
	"sync"
	"time"

	"savari/internal/types"
)

type MemoryIndex struct {
	mu      sync.RWMutex
	drivers map[types.ID]Presence
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{drivers: make(map[types.ID]Presence)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, p Presence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.drivers[p.DriverID] = p
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, driverID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, driverID types.ID) (Presence, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.drivers[driverID]
	return p, ok, nil
}

func (m *MemoryIndex) Nearby(ctx context.Context, center types.Point, radiusKm float64, f Filter, limit int) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latRange, lngRange := boundingBox(center.Lat, radiusKm)

	out := make([]Candidate, 0, 16)
	for _, p := range m.drivers {
		if !f.matches(p) {
			continue
		}
		// rectangle first: avoids haversine on the far-away majority
		if p.Position.Lat < center.Lat-latRange || p.Position.Lat > center.Lat+latRange {
			continue
		}
		if p.Position.Lng < center.Lng-lngRange || p.Position.Lng > center.Lng+lngRange {
			continue
		}
		d := DistanceKm(center, p.Position)
		if d > radiusKm {
			continue
		}
		out = append(out, Candidate{Presence: p, DistanceKm: d})
	}
	sortByDistance(out, func(c Candidate) float64 { return c.DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// README: Driver-directory adapter over the presence index. In a split
// deployment this contract is served by the driver-management service;
// the single-binary deployment answers it from the index itself.
package geo

import (
	"context"
	"sync"

	"savari/internal/types"
)

// Directory is the narrow driver-management contract consumed by the
// matching and ride services.
type Directory struct {
	idx Index

	mu        sync.Mutex
	completed map[types.ID]int64
}

func NewDirectory(idx Index) *Directory {
	return &Directory{idx: idx, completed: make(map[types.ID]int64)}
}

func (d *Directory) IsOnline(ctx context.Context, driverID types.ID) (bool, error) {
	p, ok, err := d.idx.Get(ctx, driverID)
	if err != nil || !ok {
		return false, err
	}
	return p.Online, nil
}

func (d *Directory) IsApproved(ctx context.Context, driverID types.ID) (bool, error) {
	p, ok, err := d.idx.Get(ctx, driverID)
	if err != nil || !ok {
		return false, err
	}
	return p.Approved, nil
}

func (d *Directory) CurrentPosition(ctx context.Context, driverID types.ID) (types.Point, bool, error) {
	p, ok, err := d.idx.Get(ctx, driverID)
	if err != nil || !ok {
		return types.Point{}, false, err
	}
	return p.Position, true, nil
}

func (d *Directory) IncrementCompletedRides(ctx context.Context, driverID types.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed[driverID]++
	return nil
}

// CompletedRides is used by tests and the admin surface.
func (d *Directory) CompletedRides(driverID types.ID) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed[driverID]
}

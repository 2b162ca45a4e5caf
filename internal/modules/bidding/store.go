// README: Bid store contract plus the in-memory implementation. The
// accept path runs through ResolveAccept, the one transactional primitive
// that moves the ride and settles every sibling bid together.
package bidding

import (
	"context"
	"errors"
	"sync"
	"time"

	"savari/internal/modules/ride"
	"savari/internal/types"
)

var (
	ErrNotFound     = errors.New("bid not found")
	ErrInvalidState = errors.New("invalid bid state")
	ErrConflict     = errors.New("bid state conflict")
	ErrExpired      = errors.New("bid expired")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("actor not allowed on this bid")
	ErrRideClosed   = errors.New("ride is no longer open for bidding")
	ErrDuplicateBid = errors.New("driver already has an open bid on this ride")
)

type Store interface {
	Create(ctx context.Context, b *Bid) error
	Get(ctx context.Context, id types.ID) (*Bid, error)
	ListByRide(ctx context.Context, rideID types.ID) ([]*Bid, error)
	// OpenByRideAndDriver returns the driver's pending/countered bid on
	// the ride, if any.
	OpenByRideAndDriver(ctx context.Context, rideID, driverID types.ID) (*Bid, error)
	// UpdateStatus is a CAS on the bid's current status.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, mutate func(*Bid)) (bool, error)
	// ResolveAccept atomically: moves the ride from an open status to
	// accepted with the winning driver and fare, marks the winning bid
	// accepted, and rejects every other open bid on the ride. Returns
	// false when the ride or bid moved underneath the caller.
	ResolveAccept(ctx context.Context, rideID, bidID, driverID types.ID, fare types.Money) (bool, error)
	// MarkExpired flips open bids whose TTL lapsed before the cutoff;
	// returns how many were flipped.
	MarkExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps bids in process. It shares the ride MemoryStore so
// ResolveAccept can run the ride CAS and the sibling rejection under one
// lock, giving the same all-or-nothing shape as the SQL transaction.
type MemoryStore struct {
	mu    sync.Mutex
	bids  map[types.ID]*Bid
	rides ride.Store
}

func NewMemoryStore(rides ride.Store) *MemoryStore {
	return &MemoryStore{bids: make(map[types.ID]*Bid), rides: rides}
}

func (m *MemoryStore) Create(ctx context.Context, b *Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bids {
		if existing.RideID == b.RideID && existing.DriverID == b.DriverID && existing.Open() {
			return ErrDuplicateBid
		}
	}
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id types.ID) (*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListByRide(ctx context.Context, rideID types.ID) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Bid
	for _, b := range m.bids {
		if b.RideID == rideID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) OpenByRideAndDriver(ctx context.Context, rideID, driverID types.ID) (*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.RideID == rideID && b.DriverID == driverID && b.Open() {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, mutate func(*Bid)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(b)
	}
	return true, nil
}

func (m *MemoryStore) ResolveAccept(ctx context.Context, rideID, bidID, driverID types.ID, fare types.Money) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bids[bidID]
	if !ok {
		return false, ErrNotFound
	}
	if !b.Open() || b.ExpiredAt(time.Now()) {
		return false, nil
	}

	r, err := m.rides.Get(ctx, rideID)
	if err != nil {
		return false, err
	}
	if !r.Biddable() {
		return false, nil
	}
	d := driverID
	f := fare
	okRide, err := m.rides.UpdateStatus(ctx, rideID, r.Status, ride.StatusAccepted, r.StatusVersion, ride.TransitionUpdate{
		DriverID:          &d,
		RequireUnassigned: true,
		FinalFare:         &f,
	})
	if err != nil {
		return false, err
	}
	if !okRide {
		return false, nil
	}

	now := time.Now()
	b.Status = StatusAccepted
	b.Amount = fare
	b.UpdatedAt = now
	for _, sibling := range m.bids {
		if sibling.RideID == rideID && sibling.ID != bidID && sibling.Open() {
			sibling.Status = StatusRejected
			sibling.UpdatedAt = now
		}
	}
	return true, nil
}

func (m *MemoryStore) MarkExpired(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bids {
		if b.Open() && cutoff.After(b.ExpiresAt) {
			b.Status = StatusExpired
			b.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

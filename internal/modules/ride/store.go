// README: Ride store contract plus the in-memory implementation. The
// conditional-update primitive is the single place the at-most-one-driver
// invariant is enforced; both implementations are compare-and-set on
// (status, status_version).
package ride

import (
	"context"
	"errors"
	"sync"
	"time"

	"savari/internal/types"
)

var (
	ErrNotFound     = errors.New("ride not found")
	ErrInvalidState = errors.New("invalid ride state transition")
	ErrConflict     = errors.New("ride state conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("actor not allowed on this ride")
)

// TransitionUpdate carries the optional field writes that ride a status
// transition.
type TransitionUpdate struct {
	// DriverID attaches a driver; ignored when the ride already has one.
	DriverID *types.ID
	// RequireUnassigned makes the update fail unless driver_id is null,
	// closing the double-booking race.
	RequireUnassigned bool
	FinalFare         *types.Money
	CancelledBy       *Actor
	CancelReason      *string
}

type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	// ListOpen returns biddable rides, highest priority first, oldest
	// first within a priority band.
	ListOpen(ctx context.Context, limit int) ([]*Ride, error)
	// UpdateStatus performs the atomic conditional transition. It
	// returns false (and no error) when the guard no longer holds.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd TransitionUpdate) (bool, error)
	// SetUpsale rewrites the bid tier fields while the ride is still
	// open; fails the CAS when the ride moved on.
	SetUpsale(ctx context.Context, id types.ID, version int, pct int, bidAmount, estimated types.Money, priority int) (bool, error)
	TouchLastBid(ctx context.Context, id types.ID, at time.Time) error
	AppendEvent(ctx context.Context, e *Event) error
}

type MemoryStore struct {
	mu     sync.Mutex
	rides  map[types.ID]*Ride
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[types.ID]*Ride)}
}

func (m *MemoryStore) Create(ctx context.Context, r *Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListOpen(ctx context.Context, limit int) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Ride, 0, 16)
	for _, r := range m.rides {
		if r.Biddable() {
			cp := *r
			out = append(out, &cp)
		}
	}
	// priority desc, then created asc
	for i := 1; i < len(out); i++ {
		key := out[i]
		j := i - 1
		for j >= 0 && lessOpen(key, out[j]) {
			out[j+1] = out[j]
			j--
		}
		out[j+1] = key
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func lessOpen(a, b *Ride) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd TransitionUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	if upd.RequireUnassigned && r.DriverID != nil {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	if upd.DriverID != nil && r.DriverID == nil {
		d := *upd.DriverID
		r.DriverID = &d
	}
	if upd.FinalFare != nil {
		f := *upd.FinalFare
		r.FinalFare = &f
	}
	if upd.CancelledBy != nil {
		a := *upd.CancelledBy
		r.CancelledBy = &a
	}
	if upd.CancelReason != nil {
		s := *upd.CancelReason
		r.CancelReason = &s
	}
	ApplyTimestamps(r, to, time.Now())
	return true, nil
}

func (m *MemoryStore) SetUpsale(ctx context.Context, id types.ID, version int, pct int, bidAmount, estimated types.Money, priority int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.StatusVersion != version || !r.Biddable() {
		return false, nil
	}
	r.BidPercentage = pct
	r.BidAmount = bidAmount
	r.EstimatedPrice = estimated
	r.PriorityScore = priority
	r.StatusVersion++
	return true, nil
}

func (m *MemoryStore) TouchLastBid(ctx context.Context, id types.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	r.LastBidAt = &t
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return nil
}

// Events returns the recorded transitions for one ride, oldest first.
func (m *MemoryStore) Events(rideID types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out
}

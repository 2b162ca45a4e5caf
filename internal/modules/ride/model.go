// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"time"

	"savari/internal/types"
)

type Status string

const (
	// StatusSearching is the initial status for immediate (solo) rides.
	StatusSearching Status = "searching"
	// StatusPending is the initial status for intercity and scheduled
	// rides, which are not dispatchable until closer to departure.
	StatusPending           Status = "pending"
	StatusDriverAssigned    Status = "driver_assigned"
	StatusAccepted          Status = "accepted"
	StatusDriverArrived     Status = "driver_arrived"
	StatusInProgress        Status = "in_progress"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusCancelledByDriver Status = "cancelled_by_driver"
)

type Actor string

const (
	ActorRider  Actor = "rider"
	ActorDriver Actor = "driver"
	ActorSystem Actor = "system"
)

type Kind string

const (
	KindSolo      Kind = "solo"
	KindIntercity Kind = "intercity"
	KindScheduled Kind = "scheduled"
)

// IntercityDetails only exists on intercity rides; the constructor
// enforces the pairing so invalid combinations stay unrepresentable.
type IntercityDetails struct {
	DepartureTime time.Time
	MaxPassengers int
}

type ScheduledDetails struct {
	DepartureTime time.Time
}

type Stop struct {
	Position types.Point `json:"position"`
	Address  string      `json:"address"`
}

type Ride struct {
	ID       types.ID
	RiderID  types.ID
	DriverID *types.ID

	Kind      Kind
	Intercity *IntercityDetails
	Scheduled *ScheduledDetails

	Status        Status
	StatusVersion int

	Pickup        Stop
	Dropoff       Stop
	Seats         int
	VehicleType   string
	PaymentMethod string

	// BaseFare is set once at creation and never mutated; bid math adds
	// on top of it.
	BaseFare       types.Money
	BidAmount      types.Money
	BidPercentage  int
	EstimatedPrice types.Money
	FinalFare      *types.Money
	PriorityScore  int

	CreatedAt    time.Time
	MatchedAt    *time.Time
	AcceptedAt   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	LastBidAt    *time.Time
	CancelledBy  *Actor
	CancelReason *string
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  Actor
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusSearching:      {StatusDriverAssigned, StatusAccepted, StatusCancelled},
	StatusPending:        {StatusDriverAssigned, StatusAccepted, StatusCancelled},
	StatusDriverAssigned: {StatusAccepted, StatusDriverArrived, StatusCancelled, StatusCancelledByDriver},
	StatusAccepted:       {StatusDriverArrived, StatusInProgress, StatusCancelled, StatusCancelledByDriver},
	StatusDriverArrived:  {StatusInProgress, StatusCancelled, StatusCancelledByDriver},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusCancelledByDriver
}

// InitialStatus returns the creation status for a ride kind.
func InitialStatus(k Kind) Status {
	if k == KindSolo {
		return StatusSearching
	}
	return StatusPending
}

// Biddable reports whether drivers may still place offers on the ride.
func (r *Ride) Biddable() bool {
	return (r.Status == StatusSearching || r.Status == StatusPending) && r.DriverID == nil
}

// ApplyTimestamps records the transition time fields, each set at most
// once so re-reported statuses never overwrite history.
func ApplyTimestamps(r *Ride, to Status, now time.Time) {
	switch to {
	case StatusDriverAssigned:
		if r.MatchedAt == nil {
			t := now
			r.MatchedAt = &t
		}
	case StatusAccepted:
		if r.AcceptedAt == nil {
			t := now
			r.AcceptedAt = &t
		}
	case StatusInProgress:
		if r.StartedAt == nil {
			t := now
			r.StartedAt = &t
		}
	case StatusCompleted:
		if r.CompletedAt == nil {
			t := now
			r.CompletedAt = &t
		}
	case StatusCancelled, StatusCancelledByDriver:
		if r.CancelledAt == nil {
			t := now
			r.CancelledAt = &t
		}
	}
}

// README: Ride service implements lifecycle transitions and side effects.
package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"savari/internal/modules/pricing"
	"savari/internal/observability"
	"savari/internal/types"
)

// Pricing is the fare-engine capability the ride service consumes.
type Pricing interface {
	Estimate(ctx context.Context, pickup, dropoff types.Point, vehicleType string) (pricing.Breakdown, error)
}

// DriverCounter is the slice of the external driver directory this
// service needs after completion.
type DriverCounter interface {
	IncrementCompletedRides(ctx context.Context, driverID types.ID) error
}

// Notifier delivers fire-and-forget user notifications; failures must
// never abort the transition that triggered them.
type Notifier interface {
	Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string)
}

// Settlement is invoked once a ride completes; settlement itself is an
// external concern.
type Settlement interface {
	Charge(ctx context.Context, rideID, riderID types.ID, amount types.Money) error
}

type Service struct {
	store   Store
	pricing Pricing
	drivers DriverCounter
	notify  Notifier
	settle  Settlement
	log     *zap.Logger
}

func NewService(store Store, pricing Pricing, drivers DriverCounter, notify Notifier, settle Settlement, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, pricing: pricing, drivers: drivers, notify: notify, settle: settle, log: log}
}

func (s *Service) Store() Store { return s.store }

type CreateCommand struct {
	RiderID       types.ID
	Pickup        Stop
	Dropoff       Stop
	Seats         int
	VehicleType   string
	PaymentMethod string
	Kind          Kind
	DepartureTime *time.Time
	MaxPassengers int
	// QuotedFare is the fare the rider was shown at discovery; when set
	// it becomes the base fare instead of a fresh estimate, so a surge
	// window starting between quote and booking cannot reprice the ride.
	QuotedFare int64
}

type AcceptCommand struct {
	RideID  types.ID
	RiderID types.ID
}

type ArriveCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CancelCommand struct {
	RideID  types.ID
	Actor   Actor
	ActorID types.ID
	Reason  string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.RiderID == "" || cmd.VehicleType == "" {
		return nil, ErrBadRequest
	}
	if cmd.Kind == "" {
		cmd.Kind = KindSolo
	}
	if cmd.Seats <= 0 {
		cmd.Seats = 1
	}

	r := &Ride{
		ID:            NewID(),
		RiderID:       cmd.RiderID,
		Kind:          cmd.Kind,
		Status:        InitialStatus(cmd.Kind),
		Pickup:        cmd.Pickup,
		Dropoff:       cmd.Dropoff,
		Seats:         cmd.Seats,
		VehicleType:   cmd.VehicleType,
		PaymentMethod: cmd.PaymentMethod,
		PriorityScore: 100,
		CreatedAt:     time.Now(),
	}
	switch cmd.Kind {
	case KindSolo:
		if cmd.DepartureTime != nil {
			return nil, ErrBadRequest
		}
	case KindIntercity:
		if cmd.DepartureTime == nil || cmd.MaxPassengers <= 0 {
			return nil, ErrBadRequest
		}
		r.Intercity = &IntercityDetails{DepartureTime: *cmd.DepartureTime, MaxPassengers: cmd.MaxPassengers}
	case KindScheduled:
		if cmd.DepartureTime == nil {
			return nil, ErrBadRequest
		}
		r.Scheduled = &ScheduledDetails{DepartureTime: *cmd.DepartureTime}
	default:
		return nil, ErrBadRequest
	}

	b, err := s.pricing.Estimate(ctx, cmd.Pickup.Position, cmd.Dropoff.Position, cmd.VehicleType)
	if err != nil {
		return nil, err
	}
	r.BaseFare = types.Money{Amount: b.Total, Currency: b.Currency}
	if cmd.QuotedFare > 0 {
		if cmd.QuotedFare != b.Total {
			s.log.Info("quoted fare differs from current estimate",
				zap.Int64("quoted", cmd.QuotedFare), zap.Int64("estimate", b.Total))
		}
		r.BaseFare = types.Money{Amount: cmd.QuotedFare, Currency: b.Currency}
	}
	r.BidAmount = types.Money{Amount: 0, Currency: b.Currency}
	r.EstimatedPrice = r.BaseFare

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: "",
		ToStatus:   r.Status,
		ActorType:  ActorRider,
		ActorID:    &cmd.RiderID,
		CreatedAt:  r.CreatedAt,
	})
	observability.RidesCreatedTotal.Inc()
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]*Ride, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListOpen(ctx, limit)
}

// Accept is the rider's confirmation of an assigned ride; it locks the
// final fare at the currently displayed price. A ride with no driver
// attached has nothing to confirm yet.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.RiderID != cmd.RiderID {
		return ErrUnauthorized
	}
	if r.DriverID == nil {
		return ErrInvalidState
	}
	if !CanTransition(r.Status, StatusAccepted) {
		return ErrInvalidState
	}
	fare := r.EstimatedPrice
	upd := TransitionUpdate{FinalFare: &fare}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusAccepted, r.StatusVersion, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, StatusAccepted, ActorRider, &cmd.RiderID)
	return nil
}

func (s *Service) Arrive(ctx context.Context, cmd ArriveCommand) error {
	return s.driverTransition(ctx, cmd.RideID, cmd.DriverID, StatusDriverArrived)
}

// Start begins the trip; started_at is recorded exactly once even if the
// driver app re-reports the status.
func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	return s.driverTransition(ctx, cmd.RideID, cmd.DriverID, StatusInProgress)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != cmd.DriverID {
		return ErrUnauthorized
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCompleted, r.StatusVersion, TransitionUpdate{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, StatusCompleted, ActorDriver, &cmd.DriverID)
	observability.RidesCompletedTotal.Inc()

	// downstream side effects are best-effort
	if s.drivers != nil {
		if err := s.drivers.IncrementCompletedRides(ctx, cmd.DriverID); err != nil {
			s.log.Warn("completed-rides counter update failed",
				zap.String("driver_id", string(cmd.DriverID)), zap.Error(err))
		}
	}
	if s.settle != nil {
		amount := r.EstimatedPrice
		if r.FinalFare != nil {
			amount = *r.FinalFare
		}
		if err := s.settle.Charge(ctx, r.ID, r.RiderID, amount); err != nil {
			s.log.Warn("settlement failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
		}
	}
	if s.notify != nil {
		s.notify.Notify(ctx, r.RiderID, "Ride completed", "Thanks for riding with us",
			map[string]string{"ride_id": string(r.ID)})
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	switch cmd.Actor {
	case ActorRider:
		if r.RiderID != cmd.ActorID {
			return ErrUnauthorized
		}
	case ActorDriver:
		if r.DriverID == nil || *r.DriverID != cmd.ActorID {
			return ErrUnauthorized
		}
	case ActorSystem:
	default:
		return ErrBadRequest
	}

	to := StatusCancelled
	if cmd.Actor == ActorDriver {
		to = StatusCancelledByDriver
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	actor := cmd.Actor
	upd := TransitionUpdate{CancelledBy: &actor}
	if cmd.Reason != "" {
		upd.CancelReason = &cmd.Reason
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, to, cmd.Actor, &cmd.ActorID)
	observability.RidesCancelledTotal.Inc()
	return nil
}

func (s *Service) driverTransition(ctx context.Context, rideID, driverID types.ID, to Status) error {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return err
	}
	if r.DriverID == nil || *r.DriverID != driverID {
		return ErrUnauthorized
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, TransitionUpdate{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, to, ActorDriver, &driverID)
	return nil
}

func (s *Service) appendEvent(ctx context.Context, rideID types.ID, from, to Status, actor Actor, actorID *types.ID) {
	err := s.store.AppendEvent(ctx, &Event{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		s.log.Warn("event append failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
}

// NewID mints a ride identifier.
func NewID() types.ID {
	return types.ID(uuid.NewString())
}

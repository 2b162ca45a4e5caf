package ride

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"savari/internal/modules/pricing"
	"savari/internal/types"
)

var (
	saddar  = types.Point{Lat: 24.8607, Lng: 67.0011}
	gulshan = types.Point{Lat: 24.9200, Lng: 67.0822}
)

type stubPricing struct {
	total int64
	err   error
}

func (s stubPricing) Estimate(ctx context.Context, pickup, dropoff types.Point, vehicleType string) (pricing.Breakdown, error) {
	if s.err != nil {
		return pricing.Breakdown{}, s.err
	}
	return pricing.Breakdown{Total: s.total, Currency: "PKR", VehicleType: vehicleType}, nil
}

type countingDrivers struct {
	completed map[types.ID]int
}

func (c *countingDrivers) IncrementCompletedRides(ctx context.Context, driverID types.ID) error {
	if c.completed == nil {
		c.completed = make(map[types.ID]int)
	}
	c.completed[driverID]++
	return nil
}

type recordingSettlement struct {
	charges []types.Money
	err     error
}

func (r *recordingSettlement) Charge(ctx context.Context, rideID, riderID types.ID, amount types.Money) error {
	r.charges = append(r.charges, amount)
	return r.err
}

func newService(t *testing.T) (*Service, *MemoryStore, *countingDrivers, *recordingSettlement) {
	t.Helper()
	store := NewMemoryStore()
	drivers := &countingDrivers{}
	settle := &recordingSettlement{}
	svc := NewService(store, stubPricing{total: 540}, drivers, nil, settle, zap.NewNop())
	return svc, store, drivers, settle
}

func solo(riderID types.ID) CreateCommand {
	return CreateCommand{
		RiderID:     riderID,
		Pickup:      Stop{Position: saddar, Address: "Saddar"},
		Dropoff:     Stop{Position: gulshan, Address: "Gulshan-e-Iqbal"},
		VehicleType: "car",
	}
}

// drive walks a ride to the given status through the service API.
func drive(t *testing.T, svc *Service, store *MemoryStore, r *Ride, driverID types.ID, until Status) {
	t.Helper()
	ctx := context.Background()
	d := driverID
	ok, err := store.UpdateStatus(ctx, r.ID, r.Status, StatusDriverAssigned, r.StatusVersion, TransitionUpdate{
		DriverID: &d, RequireUnassigned: true,
	})
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}
	if until == StatusDriverAssigned {
		return
	}
	if err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, RiderID: r.RiderID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if until == StatusAccepted {
		return
	}
	if err := svc.Arrive(ctx, ArriveCommand{RideID: r.ID, DriverID: driverID}); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if until == StatusDriverArrived {
		return
	}
	if err := svc.Start(ctx, StartCommand{RideID: r.ID, DriverID: driverID}); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestCreateSolo(t *testing.T) {
	svc, _, _, _ := newService(t)

	r, err := svc.Create(context.Background(), solo("rider-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusSearching {
		t.Fatalf("status = %s, want searching", r.Status)
	}
	if r.BaseFare.Amount != 540 || r.BaseFare.Currency != "PKR" {
		t.Fatalf("base fare = %+v", r.BaseFare)
	}
	if r.EstimatedPrice != r.BaseFare {
		t.Fatalf("estimated %+v != base %+v at creation", r.EstimatedPrice, r.BaseFare)
	}
	if r.Seats != 1 {
		t.Fatalf("seats defaulted to %d, want 1", r.Seats)
	}
	if r.PriorityScore != 100 {
		t.Fatalf("priority = %d, want the base 100", r.PriorityScore)
	}
}

func TestCreateIntercity(t *testing.T) {
	svc, _, _, _ := newService(t)
	dep := time.Now().Add(6 * time.Hour)

	cmd := solo("rider-1")
	cmd.Kind = KindIntercity
	cmd.DepartureTime = &dep
	cmd.MaxPassengers = 3

	r, err := svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("status = %s, want pending", r.Status)
	}
	if r.Intercity == nil || r.Intercity.MaxPassengers != 3 {
		t.Fatalf("intercity details = %+v", r.Intercity)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	dep := time.Now().Add(time.Hour)

	cases := []struct {
		name string
		mut  func(*CreateCommand)
	}{
		{"missing rider", func(c *CreateCommand) { c.RiderID = "" }},
		{"missing vehicle", func(c *CreateCommand) { c.VehicleType = "" }},
		{"solo with departure", func(c *CreateCommand) { c.DepartureTime = &dep }},
		{"intercity without departure", func(c *CreateCommand) { c.Kind = KindIntercity; c.MaxPassengers = 2 }},
		{"intercity without capacity", func(c *CreateCommand) { c.Kind = KindIntercity; c.DepartureTime = &dep }},
		{"scheduled without departure", func(c *CreateCommand) { c.Kind = KindScheduled }},
		{"unknown kind", func(c *CreateCommand) { c.Kind = Kind("pool") }},
	}
	for _, tc := range cases {
		cmd := solo("rider-1")
		tc.mut(&cmd)
		if _, err := svc.Create(ctx, cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("%s: err = %v, want ErrBadRequest", tc.name, err)
		}
	}
}

func TestCreatePricingFailureAborts(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, stubPricing{err: errors.New("rates down")}, nil, nil, nil, zap.NewNop())

	if _, err := svc.Create(context.Background(), solo("rider-1")); err == nil {
		t.Fatal("create succeeded without a fare")
	}
}

func TestHappyPathToCompletion(t *testing.T) {
	svc, store, drivers, settle := newService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, solo("rider-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	drive(t, svc, store, r, "driver-1", StatusInProgress)

	if err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := store.Get(ctx, r.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.FinalFare == nil || got.FinalFare.Amount != 540 {
		t.Fatalf("final fare = %v, want the accepted 540", got.FinalFare)
	}
	for name, ts := range map[string]*time.Time{
		"MatchedAt": got.MatchedAt, "AcceptedAt": got.AcceptedAt,
		"StartedAt": got.StartedAt, "CompletedAt": got.CompletedAt,
	} {
		if ts == nil {
			t.Errorf("%s not stamped", name)
		}
	}
	if drivers.completed["driver-1"] != 1 {
		t.Fatalf("completed-rides counter = %d", drivers.completed["driver-1"])
	}
	if len(settle.charges) != 1 || settle.charges[0].Amount != 540 {
		t.Fatalf("charges = %+v, want one 540 charge", settle.charges)
	}
}

func TestAcceptLocksFinalFare(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusAccepted)

	got, _ := store.Get(ctx, r.ID)
	if got.FinalFare == nil || *got.FinalFare != got.EstimatedPrice {
		t.Fatalf("final fare %v not locked to estimate %v", got.FinalFare, got.EstimatedPrice)
	}
	if got.BaseFare.Amount != 540 {
		t.Fatalf("base fare mutated: %+v", got.BaseFare)
	}
}

func TestAcceptUnmatchedRideRejected(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))

	err := svc.Accept(ctx, AcceptCommand{RideID: r.ID, RiderID: "rider-1"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("accept with no driver err = %v, want ErrInvalidState", err)
	}

	got, _ := store.Get(ctx, r.ID)
	if got.Status != StatusSearching {
		t.Fatalf("status = %s, want searching", got.Status)
	}
	if got.FinalFare != nil {
		t.Fatalf("final fare locked on unmatched ride: %+v", got.FinalFare)
	}
	if !got.Biddable() {
		t.Fatal("ride no longer biddable after rejected accept")
	}
}

func TestCreateWithQuotedFare(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	cmd := solo("rider-1")
	cmd.QuotedFare = 600

	r, err := svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.BaseFare.Amount != 600 || r.BaseFare.Currency != "PKR" {
		t.Fatalf("base fare = %+v, want quoted 600 PKR", r.BaseFare)
	}
	if r.EstimatedPrice != r.BaseFare {
		t.Fatalf("estimated %+v != quoted base %+v", r.EstimatedPrice, r.BaseFare)
	}
}

func TestDriverTransitionsRequireOwnership(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusAccepted)

	if err := svc.Arrive(ctx, ArriveCommand{RideID: r.ID, DriverID: "driver-2"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("arrive by stranger err = %v, want ErrUnauthorized", err)
	}
	if err := svc.Start(ctx, StartCommand{RideID: r.ID, DriverID: "driver-2"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("start by stranger err = %v, want ErrUnauthorized", err)
	}
	if err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "driver-2"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("complete by stranger err = %v, want ErrUnauthorized", err)
	}
}

func TestOutOfOrderTransitionRejected(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusDriverAssigned)

	// cannot complete before the trip starts
	if err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "driver-1"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	// cannot start before pickup
	if err := svc.Start(ctx, StartCommand{RideID: r.ID, DriverID: "driver-1"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancelByRider(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, Actor: ActorRider, ActorID: "rider-1", Reason: "changed plans"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := store.Get(ctx, r.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelledBy == nil || *got.CancelledBy != ActorRider {
		t.Fatalf("cancelled by %v, want rider", got.CancelledBy)
	}
	if got.CancelReason == nil || *got.CancelReason != "changed plans" {
		t.Fatalf("reason = %v", got.CancelReason)
	}
}

func TestCancelByDriverUsesOwnStatus(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusAccepted)

	if err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, Actor: ActorDriver, ActorID: "driver-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := store.Get(ctx, r.ID)
	if got.Status != StatusCancelledByDriver {
		t.Fatalf("status = %s, want cancelled_by_driver", got.Status)
	}
}

func TestCancelTerminalRideRejected(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusInProgress)
	if err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, DriverID: "driver-1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, Actor: ActorRider, ActorID: "rider-1"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestListOpenOrdersByPriority(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	older, _ := svc.Create(ctx, solo("rider-1"))
	newer, _ := svc.Create(ctx, solo("rider-2"))
	boosted, _ := svc.Create(ctx, solo("rider-3"))

	ok, err := store.SetUpsale(ctx, boosted.ID, boosted.StatusVersion, 20,
		types.Money{Amount: 108, Currency: "PKR"},
		types.Money{Amount: 648, Currency: "PKR"}, 140)
	if err != nil || !ok {
		t.Fatalf("upsale: ok=%v err=%v", ok, err)
	}

	open, err := svc.ListOpen(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 3 {
		t.Fatalf("got %d open rides, want 3", len(open))
	}
	if open[0].ID != boosted.ID {
		t.Fatalf("first = %s, want the boosted ride", open[0].ID)
	}
	if open[1].ID != older.ID || open[2].ID != newer.ID {
		t.Fatalf("tie order = %s, %s; want creation order", open[1].ID, open[2].ID)
	}
}

func TestEventsRecorded(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	r, _ := svc.Create(ctx, solo("rider-1"))
	drive(t, svc, store, r, "driver-1", StatusAccepted)

	events := store.Events(r.ID)
	if len(events) < 2 {
		t.Fatalf("got %d events, want at least creation and acceptance", len(events))
	}
	first := events[0]
	if first.FromStatus != "" || first.ToStatus != StatusSearching {
		t.Fatalf("first event %s -> %s", first.FromStatus, first.ToStatus)
	}
	last := events[len(events)-1]
	if last.ToStatus != StatusAccepted {
		t.Fatalf("last event -> %s, want accepted", last.ToStatus)
	}
}

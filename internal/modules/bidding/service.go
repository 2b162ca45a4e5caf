// README: Bid negotiation between riders and drivers. Drivers bid on
// open rides, riders accept/reject/counter, and at most one bid per
// ride ever wins. Upsale raises the rider's offer to widen the search.
package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"savari/internal/modules/ride"
	"savari/internal/observability"
	"savari/internal/types"
)

type Config struct {
	TTL         time.Duration
	FloorAmount int64
	Currency    string
}

type Service struct {
	bids  Store
	rides ride.Store
	cfg   Config
	log   *zap.Logger
}

func NewService(bids Store, rides ride.Store, cfg Config, log *zap.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.FloorAmount <= 0 {
		cfg.FloorAmount = 50
	}
	if cfg.Currency == "" {
		cfg.Currency = "PKR"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{bids: bids, rides: rides, cfg: cfg, log: log}
}

type PlaceBidCommand struct {
	RideID     types.ID
	DriverID   types.ID
	Amount     int64
	ETAMinutes int
	Note       string
}

func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.RideID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	if cmd.Amount < s.cfg.FloorAmount {
		return nil, ErrBadRequest
	}
	r, err := s.rides.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if !r.Biddable() {
		return nil, ErrRideClosed
	}

	now := time.Now()
	b := &Bid{
		ID:         types.ID(uuid.NewString()),
		RideID:     cmd.RideID,
		DriverID:   cmd.DriverID,
		Amount:     types.Money{Amount: cmd.Amount, Currency: s.cfg.Currency},
		ETAMinutes: cmd.ETAMinutes,
		Note:       cmd.Note,
		Status:     StatusPending,
		ExpiresAt:  now.Add(s.cfg.TTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.bids.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := s.rides.TouchLastBid(ctx, cmd.RideID, now); err != nil {
		s.log.Warn("touch last bid failed", zap.String("ride_id", string(cmd.RideID)), zap.Error(err))
	}
	observability.BidsPlacedTotal.Inc()
	s.log.Info("bid placed",
		zap.String("bid_id", string(b.ID)),
		zap.String("ride_id", string(cmd.RideID)),
		zap.Int64("amount", cmd.Amount))
	return b, nil
}

// AcceptBid is the rider taking a driver's offer. The ride assignment,
// the winning bid, and the rejection of every sibling commit together.
func (s *Service) AcceptBid(ctx context.Context, riderID, bidID types.ID) (*Bid, error) {
	b, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	r, err := s.rides.Get(ctx, b.RideID)
	if err != nil {
		return nil, err
	}
	if r.RiderID != riderID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidState
	}
	if b.ExpiredAt(time.Now()) {
		return nil, ErrExpired
	}
	return s.resolve(ctx, b, b.Amount)
}

// AcceptCounter is the driver taking the rider's counter-offer; the bid
// settles at the countered amount.
func (s *Service) AcceptCounter(ctx context.Context, driverID, bidID types.ID) (*Bid, error) {
	b, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.DriverID != driverID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusCountered || b.CounterAmount == nil {
		return nil, ErrInvalidState
	}
	if b.ExpiredAt(time.Now()) {
		return nil, ErrExpired
	}
	return s.resolve(ctx, b, *b.CounterAmount)
}

func (s *Service) resolve(ctx context.Context, b *Bid, fare types.Money) (*Bid, error) {
	ok, err := s.bids.ResolveAccept(ctx, b.RideID, b.ID, b.DriverID, fare)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	observability.BidsAcceptedTotal.Inc()
	s.log.Info("bid accepted",
		zap.String("bid_id", string(b.ID)),
		zap.String("ride_id", string(b.RideID)),
		zap.Int64("fare", fare.Amount))
	return s.bids.Get(ctx, b.ID)
}

func (s *Service) RejectBid(ctx context.Context, riderID, bidID types.ID) error {
	b, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return err
	}
	r, err := s.rides.Get(ctx, b.RideID)
	if err != nil {
		return err
	}
	if r.RiderID != riderID {
		return ErrUnauthorized
	}
	if !b.Open() {
		return ErrInvalidState
	}
	ok, err := s.bids.UpdateStatus(ctx, bidID, b.Status, StatusRejected, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) WithdrawBid(ctx context.Context, driverID, bidID types.ID) error {
	b, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return err
	}
	if b.DriverID != driverID {
		return ErrUnauthorized
	}
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	ok, err := s.bids.UpdateStatus(ctx, bidID, StatusPending, StatusWithdrawn, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

type CounterOfferCommand struct {
	RiderID types.ID
	BidID   types.ID
	Amount  int64
	Message string
}

func (s *Service) CounterOffer(ctx context.Context, cmd CounterOfferCommand) (*Bid, error) {
	if cmd.Amount < s.cfg.FloorAmount {
		return nil, ErrBadRequest
	}
	b, err := s.bids.Get(ctx, cmd.BidID)
	if err != nil {
		return nil, err
	}
	r, err := s.rides.Get(ctx, b.RideID)
	if err != nil {
		return nil, err
	}
	if r.RiderID != cmd.RiderID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidState
	}
	if b.ExpiredAt(time.Now()) {
		return nil, ErrExpired
	}
	counter := types.Money{Amount: cmd.Amount, Currency: s.cfg.Currency}
	ok, err := s.bids.UpdateStatus(ctx, cmd.BidID, StatusPending, StatusCountered, func(x *Bid) {
		x.CounterAmount = &counter
		x.CounterMessage = cmd.Message
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.bids.Get(ctx, cmd.BidID)
}

// SetUpsale raises the rider's standing offer by a fixed percentage of
// the base fare. The new estimated price and priority carry into how
// drivers see and rank the request.
func (s *Service) SetUpsale(ctx context.Context, riderID, rideID types.ID, percentage int) (*ride.Ride, error) {
	if !ValidTier(percentage) {
		return nil, ErrBadRequest
	}
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.RiderID != riderID {
		return nil, ErrUnauthorized
	}
	if !r.Biddable() {
		return nil, ErrRideClosed
	}

	bidAmount := types.Money{
		Amount:   r.BaseFare.Amount * int64(percentage) / 100,
		Currency: r.BaseFare.Currency,
	}
	estimated := r.BaseFare.Add(bidAmount)
	priority := PriorityScore(percentage)

	ok, err := s.rides.SetUpsale(ctx, rideID, r.StatusVersion, percentage, bidAmount, estimated, priority)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.log.Info("upsale set",
		zap.String("ride_id", string(rideID)),
		zap.Int("percentage", percentage),
		zap.Int64("estimated", estimated.Amount))
	return s.rides.Get(ctx, rideID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Bid, error) {
	return s.bids.Get(ctx, id)
}

func (s *Service) ListByRide(ctx context.Context, rideID types.ID) ([]*Bid, error) {
	return s.bids.ListByRide(ctx, rideID)
}

// RunExpirySweeper lazily retires stale bids in the background. Expiry
// is also enforced on the accept paths, so the sweeper only keeps the
// table tidy.
func (s *Service) RunExpirySweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.bids.MarkExpired(ctx, time.Now())
			if err != nil {
				s.log.Warn("bid expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				observability.BidsExpiredTotal.Add(float64(n))
				s.log.Info("expired bids swept", zap.Int("count", n))
			}
		}
	}
}

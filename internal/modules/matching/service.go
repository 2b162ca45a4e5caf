// README: Matching pairs an open ride request with nearby drivers: the
// discovery query riders see before booking, and the direct booking path
// that pins a chosen driver in one step.
package matching

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"savari/internal/modules/bidding"
	"savari/internal/modules/geo"
	"savari/internal/modules/pricing"
	"savari/internal/modules/ride"
	"savari/internal/observability"
	"savari/internal/types"
)

var (
	// ErrDriverUnavailable means the chosen driver went offline or was
	// taken between discovery and booking. Callers retry with another
	// driver.
	ErrDriverUnavailable = errors.New("driver no longer available")
)

// ETARefiner improves the heuristic pickup ETA with a routed estimate.
// Optional; a nil refiner keeps the distance-based heuristic.
type ETARefiner interface {
	PickupETAMinutes(ctx context.Context, from, to types.Point) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string)
}

type Config struct {
	BaseRadiusKm float64
	BaseTopN     int
}

type Service struct {
	index   geo.Index
	rides   *ride.Service
	pricing *pricing.Service
	eta     ETARefiner
	notify  Notifier
	cfg     Config
	log     *zap.Logger
}

func NewService(index geo.Index, rides *ride.Service, fares *pricing.Service, eta ETARefiner, notify Notifier, cfg Config, log *zap.Logger) *Service {
	if cfg.BaseRadiusKm <= 0 {
		cfg.BaseRadiusKm = 5
	}
	if cfg.BaseTopN <= 0 {
		cfg.BaseTopN = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{index: index, rides: rides, pricing: fares, eta: eta, notify: notify, cfg: cfg, log: log}
}

// DriverOption is one bookable driver as presented to the rider, nearest
// first.
type DriverOption struct {
	DriverID    types.ID          `json:"driver_id"`
	Position    types.Point       `json:"position"`
	VehicleType string            `json:"vehicle_type"`
	Seats       int               `json:"seats"`
	DistanceKm  float64           `json:"distance_km"`
	ETAMinutes  int               `json:"eta_minutes"`
	Quote       pricing.Breakdown `json:"quote"`
}

type FindQuery struct {
	Pickup      types.Point
	Dropoff     types.Point
	VehicleType string
	Seats       int
	// UpsalePercentage widens the search radius and candidate cap per
	// the rider's current offer tier.
	UpsalePercentage int
}

func (s *Service) FindAvailableDrivers(ctx context.Context, q FindQuery) ([]DriverOption, error) {
	radius := s.cfg.BaseRadiusKm + bidding.RadiusBonusKm(q.UpsalePercentage)
	limit := s.cfg.BaseTopN
	if n := bidding.CandidateCap(q.UpsalePercentage); n > limit {
		limit = n
	}

	candidates, err := s.index.Nearby(ctx, q.Pickup, radius, geo.Filter{
		VehicleType: q.VehicleType,
		MinSeats:    q.Seats,
	}, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// empty is a normal outcome; callers render [] not null
		return []DriverOption{}, nil
	}

	// one quote covers every driver; only the pickup leg differs
	quote, err := s.pricing.Estimate(ctx, q.Pickup, q.Dropoff, q.VehicleType)
	if err != nil {
		return nil, err
	}
	if q.UpsalePercentage > 0 && bidding.ValidTier(q.UpsalePercentage) {
		quote.BidAmount = quote.Total * int64(q.UpsalePercentage) / 100
		quote.Total += quote.BidAmount
	}

	out := make([]DriverOption, 0, len(candidates))
	for _, c := range candidates {
		etaMin := pricing.PickupETAMinutes(c.DistanceKm)
		if s.eta != nil {
			if routed, err := s.eta.PickupETAMinutes(ctx, c.Position, q.Pickup); err == nil && routed > 0 {
				etaMin = routed
			} else if err != nil {
				s.log.Debug("routed eta unavailable", zap.String("driver_id", string(c.DriverID)), zap.Error(err))
			}
		}
		out = append(out, DriverOption{
			DriverID:    c.DriverID,
			Position:    c.Position,
			VehicleType: c.VehicleType,
			Seats:       c.Seats,
			DistanceKm:  c.DistanceKm,
			ETAMinutes:  etaMin,
			Quote:       quote,
		})
	}
	return out, nil
}

// BookCommand creates a ride already aimed at one driver, skipping the
// bidding round entirely.
type BookCommand struct {
	ride.CreateCommand
	DriverID types.ID
}

func (s *Service) BookRide(ctx context.Context, cmd BookCommand) (*ride.Ride, error) {
	if cmd.DriverID == "" {
		return nil, ride.ErrBadRequest
	}
	p, found, err := s.index.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !found || !p.Online || !p.Approved {
		return nil, ErrDriverUnavailable
	}

	r, err := s.rides.Create(ctx, cmd.CreateCommand)
	if err != nil {
		return nil, err
	}

	d := cmd.DriverID
	ok, err := s.rides.Store().UpdateStatus(ctx, r.ID, r.Status, ride.StatusDriverAssigned, r.StatusVersion, ride.TransitionUpdate{
		DriverID:          &d,
		RequireUnassigned: true,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// the driver (or another assignment) beat us to the ride
		return nil, ErrDriverUnavailable
	}
	observability.DirectAssignmentsTotal.Inc()
	s.log.Info("ride booked directly",
		zap.String("ride_id", string(r.ID)),
		zap.String("driver_id", string(cmd.DriverID)))

	if s.notify != nil {
		s.notify.Notify(ctx, cmd.DriverID, "New ride assigned",
			fmt.Sprintf("Pickup at %s", r.Pickup.Address),
			map[string]string{"ride_id": string(r.ID), "type": "direct_assignment"})
	}
	return s.rides.Get(ctx, r.ID)
}

// README: Fare engine. Pure fare math over an injected rate provider;
// no ambient tariff state.
package pricing

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"savari/internal/modules/geo"
	"savari/internal/types"
)

var ErrBadCoordinates = errors.New("coordinates out of range")

// RateProvider supplies the active tariff and surge multiplier. The
// postgres Store implements it; tests inject fixed tables.
type RateProvider interface {
	RateFor(ctx context.Context, vehicleType string) (Rate, error)
	ActiveSurge(ctx context.Context) (float64, error)
}

type Service struct {
	rates RateProvider
	log   *zap.Logger
}

func NewService(rates RateProvider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rates: rates, log: log}
}

// tripSpeedFactor converts trip kilometres to in-ride minutes; the pickup
// approach uses a slower factor since drivers cross traffic to get there.
const (
	tripSpeedFactor   = 2.5
	pickupSpeedFactor = 3.0
	roundingUnit      = 10
)

// Estimate computes the displayed fare for a trip. Surge or rate store
// failures degrade to the in-code tariff and multiplier 1.0 rather than
// failing the estimate.
func (s *Service) Estimate(ctx context.Context, pickup, dropoff types.Point, vehicleType string) (Breakdown, error) {
	if !validPoint(pickup) || !validPoint(dropoff) {
		return Breakdown{}, ErrBadCoordinates
	}

	distanceKm := geo.DistanceKm(pickup, dropoff)
	durationMin := TripDurationMinutes(distanceKm)

	rate := s.lookupRate(ctx, vehicleType)
	multiplier := s.lookupSurge(ctx)

	distanceFare := int64(math.Round(distanceKm * float64(rate.PerKm)))
	timeFare := durationMin * rate.PerMinute
	subtotal := rate.BaseFare + distanceFare + timeFare + rate.BookingFee

	var surgeAmount int64
	if multiplier > 1.0 {
		surgeAmount = int64(math.Round(float64(subtotal) * (multiplier - 1)))
	}

	total := roundUpTo(subtotal+surgeAmount, roundingUnit)
	if total < rate.MinimumFare {
		total = rate.MinimumFare
	}

	return Breakdown{
		VehicleType:     rate.VehicleType,
		DistanceKm:      distanceKm,
		DurationMin:     durationMin,
		BaseFare:        rate.BaseFare,
		DistanceFare:    distanceFare,
		TimeFare:        timeFare,
		BookingFee:      rate.BookingFee,
		Subtotal:        subtotal,
		SurgeMultiplier: multiplier,
		SurgeAmount:     surgeAmount,
		Total:           total,
		Currency:        rate.Currency,
	}, nil
}

// TripDurationMinutes estimates in-ride minutes from trip distance.
func TripDurationMinutes(distanceKm float64) int64 {
	return int64(math.Ceil(distanceKm * tripSpeedFactor))
}

// PickupETAMinutes estimates the driver's approach time to the pickup.
func PickupETAMinutes(distanceKm float64) int {
	return int(math.Ceil(distanceKm * pickupSpeedFactor))
}

func (s *Service) lookupRate(ctx context.Context, vehicleType string) Rate {
	if s.rates == nil {
		return DefaultRate(vehicleType)
	}
	r, err := s.rates.RateFor(ctx, vehicleType)
	if err != nil {
		if !errors.Is(err, ErrNoRate) {
			s.log.Warn("rate lookup failed, using default tariff",
				zap.String("vehicle_type", vehicleType), zap.Error(err))
		}
		return DefaultRate(vehicleType)
	}
	return r
}

func (s *Service) lookupSurge(ctx context.Context) float64 {
	if s.rates == nil {
		return 1.0
	}
	m, err := s.rates.ActiveSurge(ctx)
	if err != nil {
		s.log.Warn("surge lookup failed, assuming no surge", zap.Error(err))
		return 1.0
	}
	if m < 1.0 {
		return 1.0
	}
	return m
}

func roundUpTo(v, unit int64) int64 {
	if v%unit == 0 {
		return v
	}
	return (v/unit + 1) * unit
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// README: Rate and surge store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoRate = errors.New("no active rate for vehicle type")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) RateFor(ctx context.Context, vehicleType string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT vehicle_type, base_fare, per_km, per_minute, booking_fee,
		       minimum_fare, cancellation_fee, currency
		FROM rates
		WHERE vehicle_type = $1 AND active`, vehicleType,
	)
	var r Rate
	err := row.Scan(&r.VehicleType, &r.BaseFare, &r.PerKm, &r.PerMinute,
		&r.BookingFee, &r.MinimumFare, &r.CancellationFee, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNoRate
	}
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}

// ActiveSurge returns the multiplier of the currently active surge window,
// or 1.0 when none is active.
func (s *Store) ActiveSurge(ctx context.Context) (float64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT multiplier
		FROM surge_windows
		WHERE active
		  AND starts_at <= NOW()
		  AND (ends_at IS NULL OR ends_at > NOW())
		ORDER BY multiplier DESC
		LIMIT 1`,
	)
	var m float64
	err := row.Scan(&m)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1.0, nil
	}
	if err != nil {
		return 1.0, err
	}
	return m, nil
}

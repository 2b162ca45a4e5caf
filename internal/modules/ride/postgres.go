// README: Ride store backed by PostgreSQL. The UPDATE guard mirrors the
// in-memory CAS: WHERE status = $from AND status_version = $v (and
// driver_id IS NULL when attaching a driver).
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"savari/internal/types"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const rideColumns = `
	id, rider_id, driver_id, kind, departure_time, max_passengers,
	status, status_version,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	seats, vehicle_type, payment_method,
	base_fare, bid_amount, bid_percentage, estimated_price, final_fare,
	priority_score, currency,
	created_at, matched_at, accepted_at, started_at, completed_at,
	cancelled_at, last_bid_at, cancelled_by, cancel_reason`

func (s *PostgresStore) Create(ctx context.Context, r *Ride) error {
	var departure *time.Time
	var maxPassengers *int
	switch {
	case r.Intercity != nil:
		departure = &r.Intercity.DepartureTime
		maxPassengers = &r.Intercity.MaxPassengers
	case r.Scheduled != nil:
		departure = &r.Scheduled.DepartureTime
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, kind, departure_time, max_passengers,
			status, status_version,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address,
			seats, vehicle_type, payment_method,
			base_fare, bid_amount, bid_percentage, estimated_price,
			priority_score, currency, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18, $19, $20,
			$21, $22, $23
		)`,
		string(r.ID), string(r.RiderID), string(r.Kind), departure, maxPassengers,
		string(r.Status), r.StatusVersion,
		r.Pickup.Position.Lat, r.Pickup.Position.Lng, r.Pickup.Address,
		r.Dropoff.Position.Lat, r.Dropoff.Position.Lng, r.Dropoff.Address,
		r.Seats, r.VehicleType, r.PaymentMethod,
		r.BaseFare.Amount, r.BidAmount.Amount, r.BidPercentage, r.EstimatedPrice.Amount,
		r.PriorityScore, r.BaseFare.Currency, r.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	return scanRide(row)
}

func (s *PostgresStore) ListOpen(ctx context.Context, limit int) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status IN ('searching','pending') AND driver_id IS NULL
		ORDER BY priority_score DESC, created_at ASC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd TransitionUpdate) (bool, error) {
	var driver *string
	if upd.DriverID != nil {
		v := string(*upd.DriverID)
		driver = &v
	}
	var finalFare *int64
	if upd.FinalFare != nil {
		v := upd.FinalFare.Amount
		finalFare = &v
	}
	var cancelledBy *string
	if upd.CancelledBy != nil {
		v := string(*upd.CancelledBy)
		cancelledBy = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE(driver_id, $2),
		    final_fare = COALESCE($3, final_fare),
		    cancelled_by = COALESCE($4, cancelled_by),
		    cancel_reason = COALESCE($5, cancel_reason),
		    matched_at = CASE WHEN $1 = 'driver_assigned' AND matched_at IS NULL THEN NOW() ELSE matched_at END,
		    accepted_at = CASE WHEN $1 = 'accepted' AND accepted_at IS NULL THEN NOW() ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'in_progress' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' AND completed_at IS NULL THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 IN ('cancelled','cancelled_by_driver') AND cancelled_at IS NULL THEN NOW() ELSE cancelled_at END
		WHERE id = $6 AND status = $7 AND status_version = $8
		  AND ($9 = false OR driver_id IS NULL)`,
		string(to), driver, finalFare, cancelledBy, upd.CancelReason,
		string(id), string(from), version, upd.RequireUnassigned,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetUpsale(ctx context.Context, id types.ID, version int, pct int, bidAmount, estimated types.Money, priority int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET bid_percentage = $1,
		    bid_amount = $2,
		    estimated_price = $3,
		    priority_score = $4,
		    status_version = status_version + 1
		WHERE id = $5 AND status_version = $6
		  AND status IN ('searching','pending') AND driver_id IS NULL`,
		pct, bidAmount.Amount, estimated.Amount, priority,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) TouchLastBid(ctx context.Context, id types.ID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE rides SET last_bid_at = $1 WHERE id = $2`, at, string(id))
	return err
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID), string(e.FromStatus), string(e.ToStatus),
		string(e.ActorType), idPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*Ride, error) {
	var r Ride
	var kind string
	var departure sql.NullTime
	var maxPassengers sql.NullInt64
	var driverID, cancelledBy, cancelReason sql.NullString
	var finalFare sql.NullInt64
	var matchedAt, acceptedAt, startedAt, completedAt, cancelledAt, lastBidAt sql.NullTime
	var currency string
	var status string

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID, &kind, &departure, &maxPassengers,
		&status, &r.StatusVersion,
		&r.Pickup.Position.Lat, &r.Pickup.Position.Lng, &r.Pickup.Address,
		&r.Dropoff.Position.Lat, &r.Dropoff.Position.Lng, &r.Dropoff.Address,
		&r.Seats, &r.VehicleType, &r.PaymentMethod,
		&r.BaseFare.Amount, &r.BidAmount.Amount, &r.BidPercentage, &r.EstimatedPrice.Amount, &finalFare,
		&r.PriorityScore, &currency,
		&r.CreatedAt, &matchedAt, &acceptedAt, &startedAt, &completedAt,
		&cancelledAt, &lastBidAt, &cancelledBy, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Status = Status(status)
	r.Kind = Kind(kind)
	switch r.Kind {
	case KindIntercity:
		if departure.Valid {
			r.Intercity = &IntercityDetails{DepartureTime: departure.Time}
			if maxPassengers.Valid {
				r.Intercity.MaxPassengers = int(maxPassengers.Int64)
			}
		}
	case KindScheduled:
		if departure.Valid {
			r.Scheduled = &ScheduledDetails{DepartureTime: departure.Time}
		}
	}
	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	r.BaseFare.Currency = currency
	r.BidAmount.Currency = currency
	r.EstimatedPrice.Currency = currency
	if finalFare.Valid {
		f := types.Money{Amount: finalFare.Int64, Currency: currency}
		r.FinalFare = &f
	}
	r.MatchedAt = timePtr(matchedAt)
	r.AcceptedAt = timePtr(acceptedAt)
	r.StartedAt = timePtr(startedAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	r.LastBidAt = timePtr(lastBidAt)
	if cancelledBy.Valid {
		a := Actor(cancelledBy.String)
		r.CancelledBy = &a
	}
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	return &r, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

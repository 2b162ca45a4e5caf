// README: Bid store backed by PostgreSQL. ResolveAccept is one
// transaction: conditional ride UPDATE, winning bid UPDATE, sibling
// rejection — commit or nothing.
package bidding

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

const bidColumns = `
	id, ride_id, driver_id, amount, currency, eta_minutes, note,
	status, expires_at, counter_amount, counter_message,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, b *Bid) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO bids (
			id, ride_id, driver_id, amount, currency, eta_minutes, note,
			status, expires_at, created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE NOT EXISTS (
			SELECT 1 FROM bids
			WHERE ride_id = $2 AND driver_id = $3
			  AND status IN ('pending','countered')
		)`,
		string(b.ID), string(b.RideID), string(b.DriverID),
		b.Amount.Amount, b.Amount.Currency, b.ETAMinutes, b.Note,
		string(b.Status), b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateBid
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Bid, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, string(id))
	return scanBid(row)
}

func (s *PostgresStore) ListByRide(ctx context.Context, rideID types.ID) ([]*Bid, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE ride_id = $1
		ORDER BY created_at ASC`, string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OpenByRideAndDriver(ctx context.Context, rideID, driverID types.ID) (*Bid, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE ride_id = $1 AND driver_id = $2
		  AND status IN ('pending','countered')
		LIMIT 1`, string(rideID), string(driverID),
	)
	return scanBid(row)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, mutate func(*Bid)) (bool, error) {
	// mutate is applied to an in-memory copy to derive the written
	// counter fields; only known columns are persisted.
	var b Bid
	if mutate != nil {
		mutate(&b)
	}
	var counterAmount *int64
	if b.CounterAmount != nil {
		counterAmount = &b.CounterAmount.Amount
	}
	var counterMessage *string
	if b.CounterMessage != "" {
		counterMessage = &b.CounterMessage
	}
	var amount *int64
	if b.Amount.Amount != 0 {
		amount = &b.Amount.Amount
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE bids
		SET status = $1,
		    amount = COALESCE($2, amount),
		    counter_amount = COALESCE($3, counter_amount),
		    counter_message = COALESCE($4, counter_message),
		    updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		string(to), amount, counterAmount, counterMessage,
		string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ResolveAccept(ctx context.Context, rideID, bidID, driverID types.ID, fare types.Money) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// lock the winning bid row and re-check it is still live
	var status string
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT status, expires_at FROM bids
		WHERE id = $1 AND ride_id = $2
		FOR UPDATE`, string(bidID), string(rideID),
	).Scan(&status, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != string(StatusPending) && status != string(StatusCountered) {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		return false, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'accepted',
		    status_version = status_version + 1,
		    driver_id = $1,
		    final_fare = $2,
		    accepted_at = COALESCE(accepted_at, NOW())
		WHERE id = $3
		  AND status IN ('searching','pending')
		  AND driver_id IS NULL`,
		string(driverID), fare.Amount, string(rideID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'accepted', amount = $1, updated_at = NOW()
		WHERE id = $2`, fare.Amount, string(bidID),
	); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'rejected', updated_at = NOW()
		WHERE ride_id = $1 AND id <> $2
		  AND status IN ('pending','countered')`,
		string(rideID), string(bidID),
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) MarkExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bids
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('pending','countered') AND expires_at < $1`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row rowScanner) (*Bid, error) {
	var b Bid
	var currency string
	var status string
	var note, counterMessage sql.NullString
	var counterAmount sql.NullInt64

	err := row.Scan(
		&b.ID, &b.RideID, &b.DriverID, &b.Amount.Amount, &currency,
		&b.ETAMinutes, &note, &status, &b.ExpiresAt,
		&counterAmount, &counterMessage,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Amount.Currency = currency
	b.Status = Status(status)
	if note.Valid {
		b.Note = note.String
	}
	if counterAmount.Valid {
		m := types.Money{Amount: counterAmount.Int64, Currency: currency}
		b.CounterAmount = &m
	}
	if counterMessage.Valid {
		b.CounterMessage = counterMessage.String
	}
	return &b, nil
}

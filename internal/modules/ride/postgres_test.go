// README: DB-backed store tests; they run only when SAVARI_TEST_DSN
// points at a disposable database.
package ride

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"savari/internal/types"
)

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("SAVARI_TEST_DSN")
	if dsn == "" {
		t.Skip("SAVARI_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_state_events, bids, rides"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewPostgresStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	for _, line := range strings.Split(input, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	var out []string
	for _, stmt := range strings.Split(input, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func seedDBRide(t *testing.T, store *PostgresStore, id types.ID) *Ride {
	t.Helper()
	r := &Ride{
		ID:             id,
		RiderID:        "rider-1",
		Kind:           KindSolo,
		Status:         StatusSearching,
		Pickup:         Stop{Position: saddar, Address: "Saddar"},
		Dropoff:        Stop{Position: gulshan, Address: "Gulshan"},
		Seats:          1,
		VehicleType:    "car",
		PaymentMethod:  "cash",
		BaseFare:       types.Money{Amount: 540, Currency: "PKR"},
		BidAmount:      types.Money{Currency: "PKR"},
		EstimatedPrice: types.Money{Amount: 540, Currency: "PKR"},
		PriorityScore:  100,
		CreatedAt:      time.Now(),
	}
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestPostgresRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedDBRide(t, store, "ride-rt")

	got, err := store.Get(ctx, "ride-rt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSearching || got.BaseFare.Amount != 540 || got.BaseFare.Currency != "PKR" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("missing ride err = %v, want ErrNotFound", err)
	}
}

func TestPostgresConditionalUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	r := seedDBRide(t, store, "ride-cas")

	d := types.ID("driver-1")
	ok, err := store.UpdateStatus(ctx, r.ID, StatusSearching, StatusDriverAssigned, 0, TransitionUpdate{
		DriverID: &d, RequireUnassigned: true,
	})
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}

	// stale version loses
	ok, err = store.UpdateStatus(ctx, r.ID, StatusSearching, StatusCancelled, 0, TransitionUpdate{})
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("stale version applied")
	}

	got, _ := store.Get(ctx, r.ID)
	if got.StatusVersion != 1 || got.DriverID == nil || *got.DriverID != d {
		t.Fatalf("after assign: %+v", got)
	}
	if got.MatchedAt == nil {
		t.Fatal("matched_at not stamped")
	}
}

func TestPostgresConcurrentAssign(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedDBRide(t, store, "ride-race")

	const drivers = 8
	start := make(chan struct{})
	wins := make(chan types.ID, drivers)
	var wg sync.WaitGroup
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			d := types.ID(fmt.Sprintf("driver-%d", n))
			ok, err := store.UpdateStatus(ctx, "ride-race", StatusSearching, StatusDriverAssigned, 0, TransitionUpdate{
				DriverID: &d, RequireUnassigned: true,
			})
			if err == nil && ok {
				wins <- d
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(wins)

	var winners []types.ID
	for d := range wins {
		winners = append(winners, d)
	}
	if len(winners) != 1 {
		t.Fatalf("%d winners, want 1", len(winners))
	}
	got, _ := store.Get(ctx, "ride-race")
	if got.DriverID == nil || *got.DriverID != winners[0] {
		t.Fatalf("ride driver %v, winner %s", got.DriverID, winners[0])
	}
}

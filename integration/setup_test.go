package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"creditslot/internal/booking"
	"creditslot/internal/clock"
	"creditslot/internal/config"
	"creditslot/internal/conversion"
	"creditslot/internal/db"
	"creditslot/internal/event"
	"creditslot/internal/payout"
	"creditslot/internal/wallet"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env is a fully wired stack over a real database. Redis is left out: the
// conversion cache and the notifier are both optional.
type env struct {
	db       *sqlx.DB
	clock    *clock.FakeClock
	ledger   wallet.Ledger
	bookings booking.Service
	payouts  payout.Service
}

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	database, err := db.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database, migrationsPath()))
	cleanDatabase(t, database)
	return database
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "migrations")
}

func cleanDatabase(t *testing.T, database *sqlx.DB) {
	t.Helper()
	_, err := database.Exec(`TRUNCATE merchant_slot_payouts, credit_grants, credit_transactions,
		booking_items, bookings, wallets, slot_prices, conversions, event_slots, event_dates,
		events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func newEnv(t *testing.T, now time.Time) *env {
	database := setupTestDB(t)
	clk := clock.NewFakeClock(now)
	runner := db.NewTxRunner(database, 5*time.Second)

	conversions := conversion.NewService(conversion.NewRepository(), database, clk, nil, 0)
	slots := event.NewRepository()
	ledger := wallet.NewLedger(wallet.NewRepository(), database, runner, conversions, clk)
	bookingRepo := booking.NewRepository()

	return &env{
		db:     database,
		clock:  clk,
		ledger: ledger,
		bookings: booking.NewService(bookingRepo, slots, ledger, conversions, runner, database, nil, clk,
			config.BookingConfig{CancellationPolicy: 24 * time.Hour, AllowCreditFallback: true}),
		payouts: payout.NewService(payout.NewRepository(), slots, bookingRepo, conversions,
			payout.NewCalculator(config.PayoutConfig{ReleaseOffset: time.Hour}),
			runner, database, nil, clk),
	}
}

func (e *env) user(t *testing.T, name, role string) int64 {
	t.Helper()
	var id int64
	err := e.db.QueryRow(`INSERT INTO users (name, email, role) VALUES ($1, $2, $3) RETURNING id`,
		name, name+"@example.com", role).Scan(&id)
	require.NoError(t, err)
	return id
}

// slot creates an event with one slot and a general price. capacity 0 means unlimited.
func (e *env) slot(t *testing.T, merchantID int64, date, start, end string, capacity int, free, paid int64) int64 {
	t.Helper()
	var eventID, slotID int64
	require.NoError(t, e.db.QueryRow(`INSERT INTO events (merchant_id, name) VALUES ($1, 'Pottery Workshop') RETURNING id`,
		merchantID).Scan(&eventID))
	require.NoError(t, e.db.QueryRow(`INSERT INTO event_slots (event_id, date, start_time, end_time, capacity, is_unlimited)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		eventID, date, start, end, capacity, capacity == 0).Scan(&slotID))
	_, err := e.db.Exec(`INSERT INTO slot_prices (slot_id, free_credits, paid_credits) VALUES ($1, $2, $3)`,
		slotID, free, paid)
	require.NoError(t, err)
	return slotID
}

func (e *env) conversion(t *testing.T, creditsPerUnit string, ratio int64) {
	t.Helper()
	_, err := e.db.Exec(`INSERT INTO conversions (credits_per_currency_unit, paid_to_free_ratio, effective_from, status)
		VALUES ($1, $2, '2024-01-01T00:00:00Z', 'active')`, creditsPerUnit, ratio)
	require.NoError(t, err)
}

func (e *env) fund(t *testing.T, customerID, free, paid int64) {
	t.Helper()
	_, err := e.ledger.Grant(context.Background(), wallet.GrantRequest{
		CustomerID:   customerID,
		Type:         wallet.TypePurchase,
		Source:       "integration",
		FreeAmount:   free,
		PaidAmount:   paid,
		ValidityDays: 365,
	})
	require.NoError(t, err)
}

// assertGrantsMatch checks that what the wallet's grants still hold adds up
// to its cached balances.
func (e *env) assertGrantsMatch(t *testing.T, w *wallet.Wallet) {
	t.Helper()
	var left struct {
		Free int64 `db:"free"`
		Paid int64 `db:"paid"`
	}
	err := e.db.Get(&left,
		`SELECT COALESCE(SUM(remaining_free), 0) AS free, COALESCE(SUM(remaining_paid), 0) AS paid
		 FROM credit_grants WHERE wallet_id = $1`, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.FreeCredits, left.Free, "free left on grants")
	assert.Equal(t, w.PaidCredits, left.Paid, "paid left on grants")
}

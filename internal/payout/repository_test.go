package payout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payoutRowColumns = []string{"id", "slot_id", "merchant_id", "conversion_id", "total_paid_credits", "total_free_credits",
	"gross_amount", "platform_fee", "net_amount", "total_bookings", "booking_ids", "merchant_breakdown",
	"admin_breakdown", "calculated_at", "available_at", "status", "paid_at"}

func setupPayoutMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func samplePayout() *Payout {
	return &Payout{
		SlotID:            3,
		MerchantID:        900,
		ConversionID:      7,
		TotalPaidCredits:  14996,
		GrossAmount:       decimal.RequireFromString("149.96"),
		PlatformFee:       decimal.Zero,
		NetAmount:         decimal.RequireFromString("150.0"),
		TotalBookings:     2,
		BookingIDs:        []int64{1},
		MerchantBreakdown: types.JSONText(`[]`),
		AdminBreakdown:    types.JSONText(`{}`),
		CalculatedAt:      time.Date(2025, 1, 10, 18, 30, 0, 0, time.UTC),
		AvailableAt:       time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC),
		Status:            StatusLocked,
	}
}

func TestInsert(t *testing.T) {
	dbx, mock := setupPayoutMock(t)
	p := samplePayout()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO merchant_slot_payouts")).
		WithArgs(int64(3), int64(900), int64(7), int64(14996), int64(0),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 2, "{1}",
			sqlmock.AnyArg(), sqlmock.AnyArg(), p.CalculatedAt, p.AvailableAt, "locked").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

	require.NoError(t, NewRepository().Insert(context.Background(), dbx, p))
	assert.Equal(t, int64(41), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ConflictMeansExists(t *testing.T) {
	dbx, mock := setupPayoutMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (slot_id) DO NOTHING RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := NewRepository().Insert(context.Background(), dbx, samplePayout())
	assert.ErrorIs(t, err, ErrPayoutExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySlot(t *testing.T) {
	dbx, mock := setupPayoutMock(t)
	at := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM merchant_slot_payouts WHERE slot_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(payoutRowColumns).
			AddRow(41, 3, 900, 7, 14996, 0, "149.96", "0.00", "150.00", 2, "{1,2}", `[{"booking_id":1}]`, `{"paid_to_free_ratio":10}`, at, at, "pending", nil))

	p, err := NewRepository().GetBySlot(context.Background(), dbx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(41), p.ID)
	assert.Equal(t, "149.96", p.GrossAmount.StringFixed(2))
	assert.Equal(t, []int64{1, 2}, []int64(p.BookingIDs))
	assert.JSONEq(t, `{"paid_to_free_ratio":10}`, p.AdminBreakdown.String())
	assert.Equal(t, StatusPending, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySlot_NotFound(t *testing.T) {
	dbx, mock := setupPayoutMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM merchant_slot_payouts WHERE slot_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(payoutRowColumns))

	_, err := NewRepository().GetBySlot(context.Background(), dbx, 3)
	assert.ErrorIs(t, err, ErrPayoutNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseDue(t *testing.T) {
	dbx, mock := setupPayoutMock(t)
	now := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE merchant_slot_payouts SET status = 'pending' WHERE status = 'locked' AND available_at <= $1 RETURNING id")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41).AddRow(42))

	ids, err := NewRepository().ReleaseDue(context.Background(), dbx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{41, 42}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaid_OnlyFromPending(t *testing.T) {
	dbx, mock := setupPayoutMock(t)
	at := time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE merchant_slot_payouts SET status = 'paid', paid_at = $1 WHERE id = $2 AND status = 'pending'")).
		WithArgs(at, int64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE merchant_slot_payouts SET status = 'paid'")).
		WithArgs(at, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository()
	require.NoError(t, repo.MarkPaid(context.Background(), dbx, 41, at))
	assert.ErrorIs(t, repo.MarkPaid(context.Background(), dbx, 42, at), ErrInvalidPayoutTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Filters(t *testing.T) {
	dbx, mock := setupPayoutMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ($1 = 0 OR merchant_id = $1) AND ($2 = '' OR status = $2) ORDER BY available_at DESC, id DESC LIMIT $3 OFFSET $4")).
		WithArgs(int64(900), "locked", 50, 0).
		WillReturnRows(sqlmock.NewRows(payoutRowColumns))

	payouts, err := NewRepository().List(context.Background(), dbx, Filter{MerchantID: 900, Status: StatusLocked})
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

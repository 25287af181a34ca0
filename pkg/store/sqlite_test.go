package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, CreateDB(context.Background(), path))

	s, err := OpenSQLiteStore(context.Background(), path, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_CreateAndGetEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	advance := &models.Event{
		Kind:   models.EventKindAdvance,
		Amount: decimal.RequireFromString("100.50"),
		Date:   mustDate(t, "2021-10-01"),
	}
	require.NoError(t, s.CreateEvent(ctx, advance))
	assert.NotEqual(t, uuid.Nil, advance.ID)
	assert.False(t, advance.CreatedAt.IsZero())

	payment := &models.Event{
		Kind:   models.EventKindPayment,
		Amount: decimal.RequireFromString("120.000001"),
		Date:   mustDate(t, "2021-10-05"),
	}
	require.NoError(t, s.CreateEvent(ctx, payment))

	events, err := s.GetEventsAsOf(ctx, mustDate(t, "2021-10-30"))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, advance.ID, events[0].ID)
	assert.Equal(t, models.EventKindAdvance, events[0].Kind)
	assert.True(t, events[0].Amount.Equal(advance.Amount))
	assert.Equal(t, mustDate(t, "2021-10-01"), events[0].Date)

	assert.Equal(t, models.EventKindPayment, events[1].Kind)
	assert.Equal(t, "120.000001", events[1].Amount.String())
}

func TestSQLiteStore_GetEventsAsOfFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Inserted out of date order; same-day events keep insertion order.
	events := []*models.Event{
		{Kind: models.EventKindPayment, Amount: decimal.NewFromInt(5), Date: mustDate(t, "2021-10-05")},
		{Kind: models.EventKindAdvance, Amount: decimal.NewFromInt(1), Date: mustDate(t, "2021-10-01")},
		{Kind: models.EventKindAdvance, Amount: decimal.NewFromInt(2), Date: mustDate(t, "2021-10-01")},
		{Kind: models.EventKindAdvance, Amount: decimal.NewFromInt(9), Date: mustDate(t, "2021-11-01")},
	}
	require.NoError(t, s.CreateEvents(ctx, events))

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.GetEventsAsOf(ctx, mustDate(t, "2021-10-05"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Amount.String())
	assert.Equal(t, "2", got[1].Amount.String())
	assert.Equal(t, "5", got[2].Amount.String())
}

func TestSQLiteStore_CreateEventsIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []*models.Event{
		{Kind: models.EventKindAdvance, Amount: decimal.NewFromInt(1), Date: mustDate(t, "2021-10-01")},
		{Kind: models.EventKind(0), Amount: decimal.NewFromInt(2), Date: mustDate(t, "2021-10-02")},
	}
	require.Error(t, s.CreateEvents(ctx, events))

	n, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateAndDropDB(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite3")

	_, err := OpenSQLiteStore(ctx, path)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, CreateDB(ctx, path))
	assert.ErrorIs(t, CreateDB(ctx, path), ErrAlreadyExists)

	require.NoError(t, DropDB(path))
	assert.ErrorIs(t, DropDB(path), ErrNotInitialized)
}

func TestSQLiteStore_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newStore(db)
	defer s.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, amount, date_created, created_at FROM events")).
		WithArgs("2021-10-30").
		WillReturnError(errors.New("disk I/O error"))

	_, err = s.GetEventsAsOf(context.Background(), mustDate(t, "2021-10-30"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CreateEventsRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newStore(db)
	defer s.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	events := []*models.Event{
		{Kind: models.EventKindAdvance, Amount: decimal.NewFromInt(1), Date: mustDate(t, "2021-10-01")},
		{Kind: models.EventKindPayment, Amount: decimal.NewFromInt(2), Date: mustDate(t, "2021-10-02")},
	}
	err = s.CreateEvents(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetEventsRejectsCorruptRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newStore(db)
	defer s.Close()

	rows := sqlmock.NewRows([]string{"id", "type", "amount", "date_created", "created_at"}).
		AddRow(uuid.New().String(), "refund", "10", "2021-10-01", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type")).WillReturnRows(rows)

	_, err = s.GetEventsAsOf(context.Background(), mustDate(t, "2021-10-30"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}

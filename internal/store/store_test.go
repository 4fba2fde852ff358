package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/logger"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l := NewLedger(db, logger.NewTestLogger(t))
	l.now = func() time.Time { return fixedNow }
	return l, mock
}

func TestLedger_RecordPayment(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectExec(`INSERT INTO payment_requests`).
		WithArgs(sqlmock.AnyArg(), "REQ-1", "5000.00", "255700000001", "VODACOM", "MOBILE", "SUBSCRIPTION", PaymentRequested, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := l.RecordPayment(context.Background(), PaymentRecord{
		RequestID:   "REQ-1",
		Amount:      decimal.NewFromInt(5000),
		PhoneNumber: "255700000001",
		MNO:         "VODACOM",
		Source:      "MOBILE",
		Reason:      "SUBSCRIPTION",
		Status:      PaymentRequested,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_UpdatePaymentStatus(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectExec(`UPDATE payment_requests SET status = \$2, attempts = \$3, updated_at = \$4 WHERE request_id = \$1`).
		WithArgs("REQ-1", PaymentConfirmed, 3, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_requests`).
		WithArgs("REQ-404", PaymentTimedOut, 5, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.UpdatePaymentStatus(context.Background(), "REQ-1", PaymentConfirmed, 3))

	err := l.UpdatePaymentStatus(context.Background(), "REQ-404", PaymentTimedOut, 5)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_RecordSubmissionFailureIsReturned(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectExec(`INSERT INTO application_submissions`).
		WithArgs(sqlmock.AnyArg(), "APP-1", "T-1", "REJECTED", "tender closed", fixedNow).
		WillReturnError(stderrors.New("connection refused"))

	err := l.RecordSubmission(context.Background(), SubmissionRecord{
		ApplicationID: "APP-1",
		TenderID:      "T-1",
		Status:        "REJECTED",
		Message:       "tender closed",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_SubmissionCount(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM application_submissions WHERE application_id = \$1 AND status = \$2`).
		WithArgs("APP-1", "SUBMITTED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := l.SubmissionCount(context.Background(), "APP-1", "SUBMITTED")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Migrate(t *testing.T) {
	l, mock := newTestLedger(t)

	mock.ExpectBegin()
	for range Schema {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, l.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCorrelationStore_FirstWriterWins(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewCorrelationStore(client, time.Hour)
	ctx := context.Background()

	ids := store.For("T-1", "B-1")
	got, err := ids.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ids.SetIfAbsent(ctx, "APP-1")
	require.NoError(t, err)
	assert.Equal(t, "APP-1", got)

	got, err = store.For("T-1", "B-1").SetIfAbsent(ctx, "APP-2")
	require.NoError(t, err)
	assert.Equal(t, "APP-1", got)

	stored, err := mr.Get("application:T-1:B-1")
	require.NoError(t, err)
	assert.Equal(t, "APP-1", stored)
	assert.Equal(t, time.Hour, mr.TTL("application:T-1:B-1"))

	other, err := store.For("T-1", "B-2").Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCorrelationStore_ConcurrentSessionsAgree(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewCorrelationStore(client, time.Hour)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.For("T-1", "B-1").SetIfAbsent(context.Background(), "APP-"+string(rune('A'+i)))
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestCorrelationStore_Forget(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewCorrelationStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.For("T-1", "B-1").SetIfAbsent(ctx, "APP-1")
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "T-1", "B-1"))
	assert.False(t, mr.Exists("application:T-1:B-1"))
}

type fakeTenders struct {
	calls   int
	details *backend.TenderDetails
	err     error
}

func (f *fakeTenders) GetTenderDetails(ctx context.Context, tenderID string) (*backend.TenderDetails, error) {
	f.calls++
	return f.details, f.err
}

func (f *fakeTenders) CreateTender(ctx context.Context, form backend.TenderForm) (string, error) {
	return "T-new", nil
}

func (f *fakeTenders) UpdateTender(ctx context.Context, tenderID string, form backend.TenderForm) error {
	return nil
}

func TestTenderCache_MissThenHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	details := &backend.TenderDetails{ID: "T-1", ApplicationStatus: backend.ApplicationStatusNotFound, ApplicationFee: decimal.Zero}
	next := &fakeTenders{details: details}
	cache := NewTenderCache(next, client, time.Minute, logger.NewNoOpLogger())

	encoded, _ := json.Marshal(details)
	mock.ExpectGet("tender:T-1").RedisNil()
	mock.ExpectSet("tender:T-1", encoded, time.Minute).SetVal("OK")
	mock.ExpectGet("tender:T-1").SetVal(string(encoded))

	first, err := cache.GetTenderDetails(context.Background(), "T-1")
	require.NoError(t, err)
	second, err := cache.GetTenderDetails(context.Background(), "T-1")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenderCache_RedisDownFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := &fakeTenders{details: &backend.TenderDetails{ID: "T-1"}}
	cache := NewTenderCache(next, client, time.Minute, logger.NewNoOpLogger())

	mock.ExpectGet("tender:T-1").SetErr(stderrors.New("redis down"))

	got, err := cache.GetTenderDetails(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", got.ID)
	assert.Equal(t, 1, next.calls)
}

func TestTenderCache_BackendErrorNotCached(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := &fakeTenders{err: stderrors.New("boom")}
	cache := NewTenderCache(next, client, time.Minute, logger.NewNoOpLogger())

	mock.ExpectGet("tender:T-1").RedisNil()

	_, err := cache.GetTenderDetails(context.Background(), "T-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenderCache_UpdateInvalidates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewTenderCache(&fakeTenders{}, client, time.Minute, logger.NewNoOpLogger())

	mock.ExpectDel("tender:T-1").SetVal(1)

	require.NoError(t, cache.UpdateTender(context.Background(), "T-1", backend.TenderForm{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Package store holds the persistence used around the workflow core: the
// Postgres audit ledger and the Redis backed correlation store and tender cache.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tender-workflow/internal/common/logger"
)

// Payment ledger statuses.
const (
	PaymentRequested = "REQUESTED"
	PaymentConfirmed = "CONFIRMED"
	PaymentTimedOut  = "TIMED_OUT"
	PaymentCancelled = "CANCELLED"
	PaymentDebited   = "DEBITED"
)

// Schema creates the ledger tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS payment_requests (
		id           UUID PRIMARY KEY,
		request_id   TEXT NOT NULL UNIQUE,
		amount       NUMERIC(18,2) NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		mno          TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL,
		reason       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS application_submissions (
		id             UUID PRIMARY KEY,
		application_id TEXT NOT NULL,
		tender_id      TEXT NOT NULL,
		status         TEXT NOT NULL,
		message        TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_application_submissions_application ON application_submissions (application_id)`,
}

// PaymentRecord is one push or direct debit.
type PaymentRecord struct {
	RequestID   string
	Amount      decimal.Decimal
	PhoneNumber string
	MNO         string
	Source      string
	Reason      string
	Status      string
}

// SubmissionRecord is one final submission attempt.
type SubmissionRecord struct {
	ApplicationID string
	TenderID      string
	Status        string
	Message       string
}

// Ledger writes are best effort: failures are logged and returned, and callers
// are expected not to fail a user flow on them.
type Ledger struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewLedger(db *sql.DB, log logger.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audit-ledger"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate applies Schema in one transaction.
func (l *Ledger) Migrate(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return tx.Commit()
}

const insertPayment = `INSERT INTO payment_requests
	(id, request_id, amount, phone_number, mno, source, reason, status, attempts, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)`

func (l *Ledger) RecordPayment(ctx context.Context, rec PaymentRecord) error {
	_, err := l.db.ExecContext(ctx, insertPayment,
		uuid.NewString(), rec.RequestID, rec.Amount.StringFixed(2),
		rec.PhoneNumber, rec.MNO, rec.Source, rec.Reason, rec.Status, l.now())
	if err != nil {
		l.logger.Warn("failed to record payment request", map[string]interface{}{
			"requestId": rec.RequestID,
			"error":     err.Error(),
		})
		return fmt.Errorf("record payment %s: %w", rec.RequestID, err)
	}
	return nil
}

const updatePayment = `UPDATE payment_requests SET status = $2, attempts = $3, updated_at = $4 WHERE request_id = $1`

func (l *Ledger) UpdatePaymentStatus(ctx context.Context, requestID, status string, attempts int) error {
	res, err := l.db.ExecContext(ctx, updatePayment, requestID, status, attempts, l.now())
	if err == nil {
		var n int64
		if n, err = res.RowsAffected(); err == nil && n == 0 {
			err = sql.ErrNoRows
		}
	}
	if err != nil {
		l.logger.Warn("failed to update payment request", map[string]interface{}{
			"requestId": requestID,
			"status":    status,
			"error":     err.Error(),
		})
		return fmt.Errorf("update payment %s: %w", requestID, err)
	}
	return nil
}

const insertSubmission = `INSERT INTO application_submissions
	(id, application_id, tender_id, status, message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

func (l *Ledger) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	_, err := l.db.ExecContext(ctx, insertSubmission,
		uuid.NewString(), rec.ApplicationID, rec.TenderID, rec.Status, rec.Message, l.now())
	if err != nil {
		l.logger.Warn("failed to record submission", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
		return fmt.Errorf("record submission %s: %w", rec.ApplicationID, err)
	}
	return nil
}

const countSubmissions = `SELECT COUNT(*) FROM application_submissions WHERE application_id = $1 AND status = $2`

// SubmissionCount reports how many attempts with status were recorded.
func (l *Ledger) SubmissionCount(ctx context.Context, applicationID, status string) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, countSubmissions, applicationID, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Columns is the select list understood by ScanOrder
const Columns = `
	id, reseller_id, customer_ref, order_type, spend_amount, currency, status, completed_at,
	commission_status, commission_rate_bps, commission_tier, commission_amount,
	commission_calculated_at, commission_available_at, commission_released_at, commission_paid_at,
	payout_reference, needs_review, review_reason, created_at, updated_at`

// RowScanner is satisfied by *sql.Row and *sql.Rows
type RowScanner interface {
	Scan(dest ...interface{}) error
}

// ScanOrder reads one row selected with Columns
func ScanOrder(row RowScanner) (*Order, error) {
	o := &Order{}
	var (
		resellerID, tier, payoutRef                                sql.NullString
		spend, amount                                              sql.NullInt64
		rate                                                       sql.NullInt32
		completedAt, calculatedAt, availableAt, releasedAt, paidAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &resellerID, &o.CustomerRef, &o.OrderType, &spend, &o.Currency, &o.Status, &completedAt,
		&o.Commission.Status, &rate, &tier, &amount,
		&calculatedAt, &availableAt, &releasedAt, &paidAt,
		&payoutRef, &o.Commission.NeedsReview, &o.Commission.ReviewReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resellerID.Valid {
		id := resellerID.String
		o.ResellerID = &id
	}
	if spend.Valid {
		v := spend.Int64
		o.SpendAmount = &v
	}
	if rate.Valid {
		v := int(rate.Int32)
		o.Commission.RateBPS = &v
	}
	if amount.Valid {
		v := amount.Int64
		o.Commission.Amount = &v
	}
	o.Commission.Tier = tier.String
	o.Commission.PayoutReference = payoutRef.String
	o.CompletedAt = timePtr(completedAt)
	o.Commission.CalculatedAt = timePtr(calculatedAt)
	o.Commission.AvailableAt = timePtr(availableAt)
	o.Commission.ReleasedAt = timePtr(releasedAt)
	o.Commission.PaidAt = timePtr(paidAt)
	return o, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new order in lead (or the given) status
func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	if o.CustomerRef == "" || o.OrderType == "" {
		return fmt.Errorf("%w: customer_ref and order_type are required", ErrInvalidOrder)
	}
	if o.SpendAmount != nil && *o.SpendAmount < 0 {
		return fmt.Errorf("%w: spend_amount must not be negative", ErrInvalidOrder)
	}
	if o.Status == "" {
		o.Status = StatusLead
	}
	if o.Status == StatusCompleted || o.Status == StatusCancelled || !ValidStatus(o.Status) {
		return fmt.Errorf("%w: cannot create order in status %q", ErrInvalidOrder, o.Status)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Currency = Currency
	o.Commission.Status = CommissionPending

	var spend sql.NullInt64
	if o.SpendAmount != nil {
		spend = sql.NullInt64{Int64: *o.SpendAmount, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, customer_ref, order_type, spend_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, o.ID, o.CustomerRef, o.OrderType, spend, o.Currency, o.Status).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Get retrieves an order by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	o, err := ScanOrder(s.db.QueryRowContext(ctx, `SELECT `+Columns+` FROM orders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// BindReseller performs the write-once attribution
func (s *PostgresStore) BindReseller(ctx context.Context, orderID, resellerID string) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return ErrNotFound
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET reseller_id = $2, updated_at = NOW()
		WHERE id = $1 AND reseller_id IS NULL
	`, orderID, resellerID)
	if err != nil {
		return fmt.Errorf("failed to bind reseller: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to bind reseller: %w", err)
	} else if n == 1 {
		return nil
	}

	var current sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT reseller_id FROM orders WHERE id = $1`, orderID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read attribution: %w", err)
	}
	if current.String == resellerID {
		return nil
	}
	return ErrAlreadyAttributed
}

// UpdateStatus locks the row, validates the transition and applies it
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, to Status, spend *int64, at time.Time) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if spend != nil && *spend < 0 {
		return nil, fmt.Errorf("%w: spend_amount must not be negative", ErrInvalidOrder)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var from Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var spendArg sql.NullInt64
	if spend != nil {
		spendArg = sql.NullInt64{Int64: *spend, Valid: true}
	}
	var completedAt sql.NullTime
	if to == StatusCompleted {
		completedAt = sql.NullTime{Time: at, Valid: true}
	}

	o, err := ScanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2,
		    spend_amount = COALESCE($3, spend_amount),
		    completed_at = COALESCE($4, completed_at),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+Columns, id, to, spendArg, completedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order status: %w", err)
	}
	return o, nil
}

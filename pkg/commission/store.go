package commission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/guidepost/pkg/orders"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetOrder loads the order with its commission sub-record
func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}
	o, err := orders.ScanOrder(s.db.QueryRowContext(ctx, `SELECT `+orders.Columns+` FROM orders WHERE id = $1`, orderID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return o, nil
}

// ApplyCalculation writes the calculation guarded on the pending state
func (s *PostgresStore) ApplyCalculation(ctx context.Context, c Calculation) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET commission_status = 'calculated',
		    commission_rate_bps = $2,
		    commission_tier = $3,
		    commission_amount = $4,
		    commission_calculated_at = $5,
		    commission_available_at = $6,
		    needs_review = FALSE,
		    review_reason = '',
		    updated_at = NOW()
		WHERE id = $1 AND commission_status = 'pending' AND status = 'completed'
	`, c.OrderID, c.RateBPS, c.Tier, c.Amount, c.CalculatedAt, c.AvailableAt)
	if err != nil {
		return false, fmt.Errorf("failed to apply calculation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to apply calculation: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if c.Reward != nil {
		r := c.Reward
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO referral_rewards (id, referrer_id, source_order_id, source_reseller_id, amount, status, available_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6)
			ON CONFLICT (source_order_id) DO NOTHING
		`, r.ID, r.ReferrerID, r.SourceOrderID, r.SourceResellerID, r.Amount, r.AvailableAt)
		if err != nil {
			return false, fmt.Errorf("failed to create referral reward: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit calculation: %w", err)
	}
	return true, nil
}

// FlagForReview marks a pending commission for manual review
func (s *PostgresStore) FlagForReview(ctx context.Context, orderID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET needs_review = TRUE, review_reason = $2, updated_at = NOW()
		WHERE id = $1 AND commission_status = 'pending'
	`, orderID, reason)
	if err != nil {
		return fmt.Errorf("failed to flag order for review: %w", err)
	}
	return nil
}

// RecordSpend sets the spend of a completed order whose commission is still
// pending and clears its review flag
func (s *PostgresStore) RecordSpend(ctx context.Context, orderID string, amount int64) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET spend_amount = $2, needs_review = FALSE, review_reason = '', updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND commission_status = 'pending'
	`, orderID, amount)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	if n == 0 {
		return s.classifyOrderState(ctx, tx, orderID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit spend: %w", err)
	}
	return nil
}

// DueBeneficiaries lists resellers with matured commissions or rewards
func (s *PostgresStore) DueBeneficiaries(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reseller_id::text FROM orders
		WHERE commission_status = 'calculated' AND commission_available_at <= $1 AND reseller_id IS NOT NULL
		UNION
		SELECT referrer_id::text FROM referral_rewards
		WHERE status = 'pending' AND available_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due resellers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reseller id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReleaseForReseller flips matured rows to available and credits the
// balance by exactly the released sum, all in one transaction.
func (s *PostgresStore) ReleaseForReseller(ctx context.Context, resellerID string, now time.Time) (ReleaseSummary, error) {
	summary := ReleaseSummary{ResellerID: resellerID}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var commissionSum int64
	err = tx.QueryRowContext(ctx, `
		WITH released AS (
			UPDATE orders
			SET commission_status = 'available', commission_released_at = $2, updated_at = NOW()
			WHERE reseller_id = $1 AND commission_status = 'calculated' AND commission_available_at <= $2
			RETURNING commission_amount
		)
		SELECT COUNT(*), COALESCE(SUM(commission_amount), 0) FROM released
	`, resellerID, now).Scan(&summary.Commissions, &commissionSum)
	if err != nil {
		return summary, fmt.Errorf("failed to release commissions: %w", err)
	}

	var rewardSum int64
	err = tx.QueryRowContext(ctx, `
		WITH released AS (
			UPDATE referral_rewards
			SET status = 'available', released_at = $2
			WHERE referrer_id = $1 AND status = 'pending' AND available_at <= $2
			RETURNING amount
		)
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM released
	`, resellerID, now).Scan(&summary.Rewards, &rewardSum)
	if err != nil {
		return summary, fmt.Errorf("failed to release referral rewards: %w", err)
	}

	summary.Amount = commissionSum + rewardSum
	if summary.Amount > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reseller_balances (reseller_id, available_amount)
			VALUES ($1, $2)
			ON CONFLICT (reseller_id) DO UPDATE
			SET available_amount = reseller_balances.available_amount + EXCLUDED.available_amount,
			    updated_at = NOW()
		`, resellerID, summary.Amount)
		if err != nil {
			return summary, fmt.Errorf("failed to credit balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("failed to commit release: %w", err)
	}
	return summary, nil
}

// MarkPaid moves an available commission to paid and shifts the balance
func (s *PostgresStore) MarkPaid(ctx context.Context, orderID, payoutRef string, at time.Time) (int64, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return 0, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		resellerID string
		amount     int64
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET commission_status = 'paid', commission_paid_at = $3, payout_reference = $2, updated_at = NOW()
		WHERE id = $1 AND commission_status = 'available'
		RETURNING reseller_id::text, commission_amount
	`, orderID, payoutRef, at).Scan(&resellerID, &amount)
	if err == sql.ErrNoRows {
		return 0, s.classifyOrderState(ctx, tx, orderID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark commission paid: %w", err)
	}

	if err := payFromBalance(ctx, tx, resellerID, amount); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit payout: %w", err)
	}
	return amount, nil
}

// MarkRewardPaid moves an available referral reward to paid
func (s *PostgresStore) MarkRewardPaid(ctx context.Context, rewardID, payoutRef string, at time.Time) (int64, error) {
	if _, err := uuid.Parse(rewardID); err != nil {
		return 0, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		referrerID string
		amount     int64
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE referral_rewards
		SET status = 'paid', paid_at = $3, payout_reference = $2
		WHERE id = $1 AND status = 'available'
		RETURNING referrer_id::text, amount
	`, rewardID, payoutRef, at).Scan(&referrerID, &amount)
	if err == sql.ErrNoRows {
		var status RewardStatus
		err = tx.QueryRowContext(ctx, `SELECT status FROM referral_rewards WHERE id = $1`, rewardID).Scan(&status)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read reward: %w", err)
		}
		if status == RewardPaid {
			return 0, ErrAlreadyPaid
		}
		return 0, fmt.Errorf("%w: reward is %s", ErrInvalidState, status)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark reward paid: %w", err)
	}

	if err := payFromBalance(ctx, tx, referrerID, amount); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reward payout: %w", err)
	}
	return amount, nil
}

func payFromBalance(ctx context.Context, tx *sql.Tx, resellerID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reseller_balances
		SET available_amount = available_amount - $2,
		    paid_amount = paid_amount + $2,
		    updated_at = NOW()
		WHERE reseller_id = $1
	`, resellerID, amount)
	if err != nil {
		return fmt.Errorf("failed to move balance to paid: %w", err)
	}
	return nil
}

func (s *PostgresStore) classifyOrderState(ctx context.Context, tx *sql.Tx, orderID string) error {
	var status orders.CommissionStatus
	err := tx.QueryRowContext(ctx, `SELECT commission_status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read commission status: %w", err)
	}
	if status == orders.CommissionPaid {
		return ErrAlreadyPaid
	}
	return fmt.Errorf("%w: commission is %s", ErrInvalidState, status)
}

// Void cancels an unpaid commission, reverses any released credit and voids
// the unpaid referral reward
func (s *PostgresStore) Void(ctx context.Context, orderID, reason string, at time.Time) (VoidSummary, error) {
	var summary VoidSummary
	if _, err := uuid.Parse(orderID); err != nil {
		return summary, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		resellerID sql.NullString
		amount     sql.NullInt64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT commission_status, reseller_id::text, commission_amount
		FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&summary.PreviousStatus, &resellerID, &amount)
	if err == sql.ErrNoRows {
		return summary, ErrNotFound
	}
	if err != nil {
		return summary, fmt.Errorf("failed to lock order: %w", err)
	}

	switch summary.PreviousStatus {
	case orders.CommissionPaid:
		return summary, ErrAlreadyPaid
	case orders.CommissionVoid:
		return summary, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET commission_status = 'void', review_reason = $2, updated_at = $3
		WHERE id = $1
	`, orderID, reason, at)
	if err != nil {
		return summary, fmt.Errorf("failed to void commission: %w", err)
	}

	if summary.PreviousStatus == orders.CommissionAvailable && resellerID.Valid && amount.Int64 > 0 {
		if err := debitAvailable(ctx, tx, resellerID.String, amount.Int64); err != nil {
			return summary, err
		}
		summary.Debited = amount.Int64
	}

	var (
		rewardID     string
		referrerID   string
		rewardAmount int64
		rewardStatus RewardStatus
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id::text, referrer_id::text, amount, status
		FROM referral_rewards WHERE source_order_id = $1 FOR UPDATE
	`, orderID).Scan(&rewardID, &referrerID, &rewardAmount, &rewardStatus)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return summary, fmt.Errorf("failed to lock referral reward: %w", err)
	case rewardStatus == RewardPending || rewardStatus == RewardAvailable:
		if _, err := tx.ExecContext(ctx, `UPDATE referral_rewards SET status = 'void' WHERE id = $1`, rewardID); err != nil {
			return summary, fmt.Errorf("failed to void referral reward: %w", err)
		}
		if rewardStatus == RewardAvailable {
			if err := debitAvailable(ctx, tx, referrerID, rewardAmount); err != nil {
				return summary, err
			}
		}
		summary.RewardVoided = true
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("failed to commit void: %w", err)
	}
	return summary, nil
}

func debitAvailable(ctx context.Context, tx *sql.Tx, resellerID string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reseller_balances
		SET available_amount = available_amount - $2, updated_at = NOW()
		WHERE reseller_id = $1
	`, resellerID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	return nil
}

// PendingCompleted lists completed orders still awaiting calculation
func (s *PostgresStore) PendingCompleted(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text FROM orders
		WHERE status = 'completed' AND commission_status = 'pending'
		  AND NOT needs_review AND reseller_id IS NOT NULL
		ORDER BY completed_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending commissions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TrailingSales sums completed spend in [from, to)
func (s *PostgresStore) TrailingSales(ctx context.Context, resellerID string, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(spend_amount), 0) FROM orders
		WHERE reseller_id = $1 AND status = 'completed'
		  AND completed_at >= $2 AND completed_at < $3
	`, resellerID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum trailing sales: %w", err)
	}
	return total, nil
}

// GetReward returns the referral reward created for an order
func (s *PostgresStore) GetReward(ctx context.Context, sourceOrderID string) (*ReferralReward, error) {
	r := &ReferralReward{}
	var (
		paidAt    sql.NullTime
		payoutRef sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, referrer_id::text, source_order_id::text, source_reseller_id::text,
		       amount, status, available_at, paid_at, payout_reference, created_at
		FROM referral_rewards WHERE source_order_id = $1
	`, sourceOrderID).Scan(&r.ID, &r.ReferrerID, &r.SourceOrderID, &r.SourceResellerID,
		&r.Amount, &r.Status, &r.AvailableAt, &paidAt, &payoutRef, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral reward: %w", err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		r.PaidAt = &t
	}
	r.PayoutReference = payoutRef.String
	return r, nil
}

// GetBalance returns a reseller's balance, zero when no row exists
func (s *PostgresStore) GetBalance(ctx context.Context, resellerID string) (*Balance, error) {
	b := &Balance{ResellerID: resellerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT available_amount, paid_amount FROM reseller_balances WHERE reseller_id = $1
	`, resellerID).Scan(&b.Available, &b.Paid)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

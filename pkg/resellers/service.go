package resellers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const resellerColumns = `
	id, slug, display_name, brand_color, logo_url, tagline,
	contact_email, contact_phone, contact_line_id, contact_whatsapp,
	status, subscription_status, subscription_tier, subscription_period_end,
	provider_customer_id, provider_subscription_id, subscription_synced_at,
	commission_tier, referrer_id, created_at, updated_at`

// PostgresService implements Service on PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReseller(row rowScanner) (*Reseller, error) {
	r := &Reseller{}
	var (
		periodEnd, syncedAt sql.NullTime
		referrerID          sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Slug, &r.Brand.Name, &r.Brand.Color, &r.Brand.LogoURL, &r.Brand.Tagline,
		&r.Contact.Email, &r.Contact.Phone, &r.Contact.LineID, &r.Contact.WhatsApp,
		&r.Status, &r.Subscription.Status, &r.Subscription.Tier, &periodEnd,
		&r.Subscription.CustomerID, &r.Subscription.SubscriptionID, &syncedAt,
		&r.CommissionTier, &referrerID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		r.Subscription.PeriodEnd = &t
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		r.Subscription.SyncedAt = &t
	}
	if referrerID.Valid {
		id := referrerID.String
		r.ReferrerID = &id
	}
	return r, nil
}

// Create registers a new reseller in pending state
func (s *PostgresService) Create(ctx context.Context, r *Reseller) error {
	if err := ValidateSlug(r.Slug); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Subscription.Status == "" {
		r.Subscription.Status = SubscriptionInactive
	}
	if r.Subscription.Tier == "" {
		r.Subscription.Tier = TierGrowth
	}
	if r.CommissionTier == "" {
		r.CommissionTier = DefaultCommissionTier
	}

	query := `
		INSERT INTO resellers (
			id, slug, display_name, brand_color, logo_url, tagline,
			contact_email, contact_phone, contact_line_id, contact_whatsapp,
			status, subscription_status, subscription_tier, commission_tier, referrer_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		r.ID, r.Slug, r.Brand.Name, r.Brand.Color, r.Brand.LogoURL, r.Brand.Tagline,
		r.Contact.Email, r.Contact.Phone, r.Contact.LineID, r.Contact.WhatsApp,
		r.Status, r.Subscription.Status, r.Subscription.Tier, r.CommissionTier, nullString(r.ReferrerID),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create reseller: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reseller_balances (reseller_id) VALUES ($1) ON CONFLICT (reseller_id) DO NOTHING`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to create reseller balance: %w", err)
	}
	return nil
}

// Get retrieves a reseller by ID
func (s *PostgresService) Get(ctx context.Context, id string) (*Reseller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+resellerColumns+` FROM resellers WHERE id = $1`, id)
	r, err := scanReseller(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reseller: %w", err)
	}
	return r, nil
}

// GetBySlug retrieves a reseller by slug. Malformed slugs never reach the database.
func (s *PostgresService) GetBySlug(ctx context.Context, slug string) (*Reseller, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+resellerColumns+` FROM resellers WHERE slug = $1`, slug)
	r, err := scanReseller(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reseller by slug: %w", err)
	}
	return r, nil
}

// ListIDs returns every reseller id that is not suspended
func (s *PostgresService) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM resellers WHERE status <> $1 ORDER BY id`, StatusSuspended)
	if err != nil {
		return nil, fmt.Errorf("failed to list resellers: %w", err)
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

// SetStatus changes the approval status
func (s *PostgresService) SetStatus(ctx context.Context, id string, status Status) error {
	switch status {
	case StatusPending, StatusApproved, StatusSuspended:
	default:
		return fmt.Errorf("invalid reseller status: %s", status)
	}
	return s.execOne(ctx, "set reseller status",
		`UPDATE resellers SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

// ApplySubscription overwrites the cached subscription state
func (s *PostgresService) ApplySubscription(ctx context.Context, id string, sub Subscription) error {
	syncedAt := time.Now().UTC()
	if sub.SyncedAt != nil {
		syncedAt = *sub.SyncedAt
	}
	return s.execOne(ctx, "apply subscription", `
		UPDATE resellers
		SET subscription_status = $2,
		    subscription_tier = $3,
		    subscription_period_end = $4,
		    provider_customer_id = $5,
		    provider_subscription_id = $6,
		    subscription_synced_at = $7,
		    updated_at = NOW()
		WHERE id = $1
	`, id, sub.Status, sub.Tier, nullTime(sub.PeriodEnd), sub.CustomerID, sub.SubscriptionID, syncedAt)
}

// SetCommissionTier updates the tier code used for future calculations
func (s *PostgresService) SetCommissionTier(ctx context.Context, id, tier string, at time.Time) error {
	return s.execOne(ctx, "set commission tier", `
		UPDATE resellers
		SET commission_tier = $2, commission_tier_set_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, tier, at)
}

func (s *PostgresService) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

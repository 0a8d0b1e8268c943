package attribution

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresViewStore implements ViewStore on PostgreSQL
type PostgresViewStore struct {
	db *sql.DB
}

// NewPostgresViewStore creates a new PostgresViewStore
func NewPostgresViewStore(db *sql.DB) *PostgresViewStore {
	return &PostgresViewStore{db: db}
}

// Insert appends a page view
func (s *PostgresViewStore) Insert(ctx context.Context, v *PageView) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO page_views (id, reseller_id, path, referrer, session_id, tracked)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, v.ID, v.ResellerID, v.Path, v.Referrer, v.SessionID, v.Tracked).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert page view: %w", err)
	}
	return nil
}

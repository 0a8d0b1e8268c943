package storefront

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresCatalog reads and seeds the catalog tables
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a new PostgresCatalog
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// Load reads every module and template
func (s *PostgresCatalog) Load(ctx context.Context) (*Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, category, title, description, commission_hint_bps, required, active, sort_order
		FROM catalog_modules
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog modules: %w", err)
	}
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Key, &m.Category, &m.Title, &m.Description,
			&m.CommissionHintBPS, &m.Required, &m.Active, &m.SortOrder); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan catalog module: %w", err)
		}
		modules = append(modules, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog modules: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, category, name, is_default, active FROM catalog_templates`)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog templates: %w", err)
	}
	defer rows.Close()
	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Category, &t.Name, &t.IsDefault, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan catalog template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog templates: %w", err)
	}

	return NewCatalog(modules, templates), nil
}

// ApplySeed upserts every seed entry in one transaction. Entries missing
// from the seed are left as they are.
func (s *PostgresCatalog) ApplySeed(ctx context.Context, seed *Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range seed.Modules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_modules (id, key, category, title, description, commission_hint_bps, required, active, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				key = EXCLUDED.key,
				category = EXCLUDED.category,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				commission_hint_bps = EXCLUDED.commission_hint_bps,
				required = EXCLUDED.required,
				active = EXCLUDED.active,
				sort_order = EXCLUDED.sort_order
		`, m.ID, m.Key, m.Category, m.Title, m.Description, m.CommissionHintBPS, m.Required, m.Active, m.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to seed module %s: %w", m.ID, err)
		}
	}

	// Clear defaults first so the partial unique index never sees two.
	for _, t := range seed.Templates {
		if t.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE catalog_templates SET is_default = FALSE WHERE category = $1 AND id <> $2`,
				t.Category, t.ID); err != nil {
				return fmt.Errorf("failed to reset default template for %s: %w", t.Category, err)
			}
		}
	}
	for _, t := range seed.Templates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_templates (id, category, name, is_default, active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				name = EXCLUDED.name,
				is_default = EXCLUDED.is_default,
				active = EXCLUDED.active
		`, t.ID, t.Category, t.Name, t.IsDefault, t.Active)
		if err != nil {
			return fmt.Errorf("failed to seed template %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog seed: %w", err)
	}
	return nil
}

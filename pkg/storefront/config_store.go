package storefront

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// CatalogProvider returns the current catalog snapshot
type CatalogProvider interface {
	Get(ctx context.Context) (*Catalog, error)
}

// ConfigReader is the read side used when rendering
type ConfigReader interface {
	GetConfig(ctx context.Context, resellerID string) (*Config, error)
}

// ConfigStore persists reseller storefront configuration in PostgreSQL
type ConfigStore struct {
	db      *sql.DB
	lookup  resellers.Lookup
	catalog CatalogProvider
	now     func() time.Time
}

// NewConfigStore creates a new ConfigStore
func NewConfigStore(db *sql.DB, lookup resellers.Lookup, catalog CatalogProvider) *ConfigStore {
	return &ConfigStore{db: db, lookup: lookup, catalog: catalog, now: time.Now}
}

// GetConfig returns the config of a reseller that may be served right now.
// Unknown, unapproved or lapsed resellers all yield
// ErrStorefrontUnavailable.
func (s *ConfigStore) GetConfig(ctx context.Context, resellerID string) (*Config, error) {
	r, err := s.lookup.Get(ctx, resellerID)
	if err != nil {
		if !errors.Is(err, resellers.ErrNotFound) {
			observability.FromContext(ctx).WithError(err).WithField("reseller_id", resellerID).
				Warn("reseller lookup failed while loading storefront")
		}
		return nil, ErrStorefrontUnavailable
	}
	if !resellers.CanServe(r, s.now()) {
		return nil, ErrStorefrontUnavailable
	}
	return s.Load(ctx, resellerID)
}

// Load reads a reseller's config without visibility checks. A reseller
// that never saved anything gets an empty config.
func (s *ConfigStore) Load(ctx context.Context, resellerID string) (*Config, error) {
	cfg := &Config{ResellerID: resellerID, Templates: map[string]string{}}

	var (
		templates []byte
		pages     []string
		updatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT templates, enabled_pages, updated_at FROM storefront_configs WHERE reseller_id = $1
	`, resellerID).Scan(&templates, pq.Array(&pages), &updatedAt)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to load storefront config: %w", err)
	default:
		if len(templates) > 0 {
			if err := json.Unmarshal(templates, &cfg.Templates); err != nil {
				return nil, fmt.Errorf("failed to decode storefront templates: %w", err)
			}
		}
		cfg.EnabledPages = pages
		cfg.UpdatedAt = updatedAt.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, enabled, display_order, overrides
		FROM storefront_modules WHERE reseller_id = $1
		ORDER BY display_order, module_id
	`, resellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load storefront modules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			mc        ModuleConfig
			overrides []byte
		)
		if err := rows.Scan(&mc.ModuleID, &mc.Enabled, &mc.DisplayOrder, &overrides); err != nil {
			return nil, fmt.Errorf("failed to scan storefront module: %w", err)
		}
		if len(overrides) > 0 {
			if err := json.Unmarshal(overrides, &mc.Overrides); err != nil {
				return nil, fmt.Errorf("failed to decode module overrides: %w", err)
			}
		}
		cfg.Modules = append(cfg.Modules, mc)
	}
	return cfg, rows.Err()
}

// UpsertModule adds or updates one module on a reseller's storefront
func (s *ConfigStore) UpsertModule(ctx context.Context, resellerID string, mc ModuleConfig) error {
	cat, err := s.prepare(ctx, resellerID)
	if err != nil {
		return err
	}
	if err := validateUpsert(cat, mc); err != nil {
		return err
	}
	overrides, err := json.Marshal(nonNil(mc.Overrides))
	if err != nil {
		return fmt.Errorf("failed to encode module overrides: %w", err)
	}

	return s.inTx(ctx, resellerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO storefront_modules (reseller_id, module_id, enabled, display_order, overrides)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (reseller_id, module_id) DO UPDATE SET
				enabled = EXCLUDED.enabled,
				display_order = EXCLUDED.display_order,
				overrides = EXCLUDED.overrides
		`, resellerID, mc.ModuleID, mc.Enabled, mc.DisplayOrder, overrides)
		if err != nil {
			return fmt.Errorf("failed to upsert storefront module: %w", err)
		}
		return nil
	})
}

// RemoveModule takes an optional module off a reseller's storefront
func (s *ConfigStore) RemoveModule(ctx context.Context, resellerID, moduleID string) error {
	cat, err := s.prepare(ctx, resellerID)
	if err != nil {
		return err
	}
	if err := validateRemove(cat, moduleID); err != nil {
		return err
	}

	return s.inTx(ctx, resellerID, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM storefront_modules WHERE reseller_id = $1 AND module_id = $2`, resellerID, moduleID)
		if err != nil {
			return fmt.Errorf("failed to remove storefront module: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return ErrModuleNotFound
		}
		return nil
	})
}

// ReorderModules sets display order to the position in moduleIDs
func (s *ConfigStore) ReorderModules(ctx context.Context, resellerID string, moduleIDs []string) error {
	if _, err := s.prepare(ctx, resellerID); err != nil {
		return err
	}
	cfg, err := s.Load(ctx, resellerID)
	if err != nil {
		return err
	}
	if err := validateReorder(cfg, moduleIDs); err != nil {
		return err
	}

	return s.inTx(ctx, resellerID, func(tx *sql.Tx) error {
		for i, id := range moduleIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE storefront_modules SET display_order = $3 WHERE reseller_id = $1 AND module_id = $2`,
				resellerID, id, i+1); err != nil {
				return fmt.Errorf("failed to reorder storefront modules: %w", err)
			}
		}
		return nil
	})
}

// SetTemplate chooses the template used for one module category
func (s *ConfigStore) SetTemplate(ctx context.Context, resellerID, category, templateID string) error {
	cat, err := s.prepare(ctx, resellerID)
	if err != nil {
		return err
	}
	if err := validateTemplate(cat, category, templateID); err != nil {
		return err
	}

	return s.inTx(ctx, resellerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE storefront_configs
			SET templates = templates || jsonb_build_object($2::text, $3::text)
			WHERE reseller_id = $1
		`, resellerID, category, templateID)
		if err != nil {
			return fmt.Errorf("failed to set storefront template: %w", err)
		}
		return nil
	})
}

// SetEnabledPages replaces the list of pages shown in navigation
func (s *ConfigStore) SetEnabledPages(ctx context.Context, resellerID string, pages []string) error {
	cat, err := s.prepare(ctx, resellerID)
	if err != nil {
		return err
	}
	if err := validatePages(cat, pages); err != nil {
		return err
	}
	if pages == nil {
		pages = []string{}
	}

	return s.inTx(ctx, resellerID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE storefront_configs SET enabled_pages = $2 WHERE reseller_id = $1`,
			resellerID, pq.Array(pages))
		if err != nil {
			return fmt.Errorf("failed to set enabled pages: %w", err)
		}
		return nil
	})
}

// prepare checks the reseller exists and loads the catalog
func (s *ConfigStore) prepare(ctx context.Context, resellerID string) (*Catalog, error) {
	if _, err := s.lookup.Get(ctx, resellerID); err != nil {
		return nil, err
	}
	return s.catalog.Get(ctx)
}

// inTx ensures the config row exists, runs fn and bumps updated_at, all in
// one transaction
func (s *ConfigStore) inTx(ctx context.Context, resellerID string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO storefront_configs (reseller_id) VALUES ($1)
		ON CONFLICT (reseller_id) DO NOTHING
	`, resellerID); err != nil {
		return fmt.Errorf("failed to create storefront config: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE storefront_configs SET updated_at = NOW() WHERE reseller_id = $1`, resellerID); err != nil {
		return fmt.Errorf("failed to touch storefront config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit storefront change: %w", err)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// IPPolicyRepository provides database access for the allow/deny table.
type IPPolicyRepository struct {
	db *sqlx.DB
}

// NewIPPolicyRepository creates a new instance of IPPolicyRepository.
func NewIPPolicyRepository(db *sqlx.DB) *IPPolicyRepository {
	return &IPPolicyRepository{db: db}
}

// FindByAddress returns the policy row for an address.
func (r *IPPolicyRepository) FindByAddress(ctx context.Context, address string) (*models.IPPolicyEntry, error) {
	const query = `SELECT id, address, allowed, device_label, os_label, browser_label, created_at, updated_at FROM ip_policies WHERE address = $1 LIMIT 1`
	var entry models.IPPolicyEntry
	if err := r.db.GetContext(ctx, &entry, query, address); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find ip policy: %w", err)
	}
	return &entry, nil
}

// Upsert creates the policy row for an address or overwrites its labels and
// flag, preserving the one-row-per-address invariant.
func (r *IPPolicyRepository) Upsert(ctx context.Context, entry *models.IPPolicyEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO ip_policies (id, address, allowed, device_label, os_label, browser_label, created_at, updated_at)
		VALUES (:id, :address, :allowed, :device_label, :os_label, :browser_label, :created_at, :updated_at)
		ON CONFLICT (address) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			device_label = EXCLUDED.device_label,
			os_label = EXCLUDED.os_label,
			browser_label = EXCLUDED.browser_label,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert ip policy: %w", err)
	}
	return nil
}

// SetAllowed toggles the flag for an existing policy row.
func (r *IPPolicyRepository) SetAllowed(ctx context.Context, address string, allowed bool) error {
	const query = `UPDATE ip_policies SET allowed = $2, updated_at = $3 WHERE address = $1`
	result, err := r.db.ExecContext(ctx, query, address, allowed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set ip allowed: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the policy row for an address.
func (r *IPPolicyRepository) Delete(ctx context.Context, address string) error {
	const query = `DELETE FROM ip_policies WHERE address = $1`
	if _, err := r.db.ExecContext(ctx, query, address); err != nil {
		return fmt.Errorf("delete ip policy: %w", err)
	}
	return nil
}

// List returns all policy rows, newest first.
func (r *IPPolicyRepository) List(ctx context.Context) ([]models.IPPolicyEntry, error) {
	const query = `SELECT id, address, allowed, device_label, os_label, browser_label, created_at, updated_at FROM ip_policies ORDER BY created_at DESC`
	var entries []models.IPPolicyEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list ip policies: %w", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// BackupRepository dumps and restores every table for the JSON backup
// feature. Restores are upserts keyed on each table's natural key, so
// replaying a backup over live data never duplicates rows.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository creates a new instance of BackupRepository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// DumpUsers returns every user row.
func (r *BackupRepository) DumpUsers(ctx context.Context) ([]models.User, error) {
	const query = `SELECT id, username, email, password_hash, full_name, superuser, active, last_login, created_at, updated_at FROM users ORDER BY created_at`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("dump users: %w", err)
	}
	return users, nil
}

// DumpVisitors returns every visitor row.
func (r *BackupRepository) DumpVisitors(ctx context.Context) ([]models.Visitor, error) {
	const query = `SELECT id, cedula, full_name, email, phone, status, created_at, updated_at FROM visitors ORDER BY created_at`
	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, query); err != nil {
		return nil, fmt.Errorf("dump visitors: %w", err)
	}
	return visitors, nil
}

// DumpVisits returns every visit row.
func (r *BackupRepository) DumpVisits(ctx context.Context) ([]models.Visit, error) {
	const query = `SELECT id, visitor_id, reason, host_name, entry_at, exit_at, notes FROM visits ORDER BY entry_at`
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query); err != nil {
		return nil, fmt.Errorf("dump visits: %w", err)
	}
	return visits, nil
}

// DumpAuditEntries returns the full bitácora without the username join.
func (r *BackupRepository) DumpAuditEntries(ctx context.Context) ([]models.AuditEntry, error) {
	const query = `SELECT id, user_id, action, details, origin_ip, created_at FROM audit_entries ORDER BY created_at`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("dump audit entries: %w", err)
	}
	return entries, nil
}

// DumpIPPolicies returns every policy row.
func (r *BackupRepository) DumpIPPolicies(ctx context.Context) ([]models.IPPolicyEntry, error) {
	const query = `SELECT id, address, allowed, device_label, os_label, browser_label, created_at, updated_at FROM ip_policies ORDER BY created_at`
	var entries []models.IPPolicyEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("dump ip policies: %w", err)
	}
	return entries, nil
}

// RestoreUsers upserts user rows by id.
func (r *BackupRepository) RestoreUsers(ctx context.Context, users []models.User) error {
	const query = `INSERT INTO users (id, username, email, password_hash, full_name, superuser, active, last_login, created_at, updated_at)
		VALUES (:id, :username, :email, :password_hash, :full_name, :superuser, :active, :last_login, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			full_name = EXCLUDED.full_name,
			superuser = EXCLUDED.superuser,
			active = EXCLUDED.active,
			last_login = EXCLUDED.last_login,
			updated_at = EXCLUDED.updated_at`
	for i := range users {
		if _, err := r.db.NamedExecContext(ctx, query, &users[i]); err != nil {
			return fmt.Errorf("restore user %s: %w", users[i].ID, err)
		}
	}
	return nil
}

// RestoreVisitors upserts visitor rows by id.
func (r *BackupRepository) RestoreVisitors(ctx context.Context, visitors []models.Visitor) error {
	const query = `INSERT INTO visitors (id, cedula, full_name, email, phone, status, created_at, updated_at)
		VALUES (:id, :cedula, :full_name, :email, :phone, :status, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			cedula = EXCLUDED.cedula,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`
	for i := range visitors {
		if _, err := r.db.NamedExecContext(ctx, query, &visitors[i]); err != nil {
			return fmt.Errorf("restore visitor %s: %w", visitors[i].ID, err)
		}
	}
	return nil
}

// RestoreVisits upserts visit rows by id.
func (r *BackupRepository) RestoreVisits(ctx context.Context, visits []models.Visit) error {
	const query = `INSERT INTO visits (id, visitor_id, reason, host_name, entry_at, exit_at, notes)
		VALUES (:id, :visitor_id, :reason, :host_name, :entry_at, :exit_at, :notes)
		ON CONFLICT (id) DO UPDATE SET
			reason = EXCLUDED.reason,
			host_name = EXCLUDED.host_name,
			entry_at = EXCLUDED.entry_at,
			exit_at = EXCLUDED.exit_at,
			notes = EXCLUDED.notes`
	for i := range visits {
		if _, err := r.db.NamedExecContext(ctx, query, &visits[i]); err != nil {
			return fmt.Errorf("restore visit %s: %w", visits[i].ID, err)
		}
	}
	return nil
}

// RestoreAuditEntries inserts bitácora rows, skipping ids already present.
// The bitácora is append-only so existing rows are never overwritten.
func (r *BackupRepository) RestoreAuditEntries(ctx context.Context, entries []models.AuditEntry) error {
	const query = `INSERT INTO audit_entries (id, user_id, action, details, origin_ip, created_at)
		VALUES (:id, :user_id, :action, :details, :origin_ip, :created_at)
		ON CONFLICT (id) DO NOTHING`
	for i := range entries {
		if _, err := r.db.NamedExecContext(ctx, query, &entries[i]); err != nil {
			return fmt.Errorf("restore audit entry %s: %w", entries[i].ID, err)
		}
	}
	return nil
}

// RestoreIPPolicies upserts policy rows by address.
func (r *BackupRepository) RestoreIPPolicies(ctx context.Context, entries []models.IPPolicyEntry) error {
	const query = `INSERT INTO ip_policies (id, address, allowed, device_label, os_label, browser_label, created_at, updated_at)
		VALUES (:id, :address, :allowed, :device_label, :os_label, :browser_label, :created_at, :updated_at)
		ON CONFLICT (address) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			device_label = EXCLUDED.device_label,
			os_label = EXCLUDED.os_label,
			browser_label = EXCLUDED.browser_label,
			updated_at = EXCLUDED.updated_at`
	for i := range entries {
		if _, err := r.db.NamedExecContext(ctx, query, &entries[i]); err != nil {
			return fmt.Errorf("restore ip policy %s: %w", entries[i].Address, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// AuditRepository provides database access for the append-only bitácora.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_entries (id, user_id, action, details, origin_ip, created_at) VALUES (:id, :user_id, :action, :details, :origin_ip, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// List returns bitácora entries newest-first with total count. The username
// is joined for display; deleted actors come back as NULL.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	baseQuery := `FROM audit_entries a LEFT JOIN users u ON u.id = a.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(a.details) LIKE $%d OR LOWER(u.username) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin_ip, a.created_at %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	return entries, total, nil
}

// ListAll returns the full bitácora newest-first, used by the exporters.
func (r *AuditRepository) ListAll(ctx context.Context) ([]models.AuditEntry, error) {
	const query = `SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin_ip, a.created_at FROM audit_entries a LEFT JOIN users u ON u.id = a.user_id ORDER BY a.created_at DESC`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list all audit entries: %w", err)
	}
	return entries, nil
}

// Recent returns the latest n entries for the dashboard activity feed.
func (r *AuditRepository) Recent(ctx context.Context, n int) ([]models.AuditEntry, error) {
	if n <= 0 {
		n = 5
	}
	query := fmt.Sprintf("SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin_ip, a.created_at FROM audit_entries a LEFT JOIN users u ON u.id = a.user_id ORDER BY a.created_at DESC LIMIT %d", n)
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("recent audit entries: %w", err)
	}
	return entries, nil
}

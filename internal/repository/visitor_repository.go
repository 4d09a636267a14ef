package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// VisitorRepository provides database access for visitors and their visits.
type VisitorRepository struct {
	db *sqlx.DB
}

// NewVisitorRepository creates a new instance of VisitorRepository.
func NewVisitorRepository(db *sqlx.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// FindByCedula returns the visitor record for a national ID.
func (r *VisitorRepository) FindByCedula(ctx context.Context, cedula string) (*models.Visitor, error) {
	const query = `SELECT id, cedula, full_name, email, phone, status, created_at, updated_at FROM visitors WHERE cedula = $1 LIMIT 1`
	var visitor models.Visitor
	if err := r.db.GetContext(ctx, &visitor, query, cedula); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find visitor by cedula: %w", err)
	}
	return &visitor, nil
}

// FindByID returns a visitor by identifier.
func (r *VisitorRepository) FindByID(ctx context.Context, id string) (*models.Visitor, error) {
	const query = `SELECT id, cedula, full_name, email, phone, status, created_at, updated_at FROM visitors WHERE id = $1 LIMIT 1`
	var visitor models.Visitor
	if err := r.db.GetContext(ctx, &visitor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find visitor by id: %w", err)
	}
	return &visitor, nil
}

// Upsert creates the visitor row for a cédula or refreshes its personal data.
func (r *VisitorRepository) Upsert(ctx context.Context, visitor *models.Visitor) error {
	if visitor.ID == "" {
		visitor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = now
	}
	visitor.UpdatedAt = now

	// A concurrent insert can win the cédula; RETURNING reports the row that
	// survived so visit rows always reference an existing visitor.
	const query = `INSERT INTO visitors (id, cedula, full_name, email, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cedula) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id`
	if err := r.db.GetContext(ctx, &visitor.ID, query,
		visitor.ID, visitor.Cedula, visitor.FullName, visitor.Email, visitor.Phone, visitor.Status, visitor.CreatedAt, visitor.UpdatedAt); err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// Update edits a visitor's personal data.
func (r *VisitorRepository) Update(ctx context.Context, visitor *models.Visitor) error {
	visitor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE visitors SET full_name = :full_name, email = :email, phone = :phone, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, visitor); err != nil {
		return fmt.Errorf("update visitor: %w", err)
	}
	return nil
}

// Delete removes a visitor and, through the cascade, every visit row.
func (r *VisitorRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM visitors WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	return nil
}

// List returns the visitor directory with total count.
func (r *VisitorRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.Visitor, int, error) {
	baseQuery := `FROM visitors WHERE 1=1`
	var args []interface{}

	if search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR cedula LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, cedula, full_name, email, phone, status, created_at, updated_at %s ORDER BY full_name ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var visitors []models.Visitor
	if err := r.db.SelectContext(ctx, &visitors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}

	return visitors, total, nil
}

// HasEntryToday reports whether the visitor already registered an entry on
// the given calendar day.
func (r *VisitorRepository) HasEntryToday(ctx context.Context, visitorID string, day time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM visits WHERE visitor_id = $1 AND entry_at::date = $2::date)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, visitorID, day); err != nil {
		return false, fmt.Errorf("check entry today: %w", err)
	}
	return exists, nil
}

// CreateVisit registers an entry.
func (r *VisitorRepository) CreateVisit(ctx context.Context, visit *models.Visit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	if visit.EntryAt.IsZero() {
		visit.EntryAt = time.Now().UTC()
	}
	const query = `INSERT INTO visits (id, visitor_id, reason, host_name, entry_at, exit_at, notes) VALUES (:id, :visitor_id, :reason, :host_name, :entry_at, :exit_at, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, visit); err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

// CloseVisit stamps the exit on the visitor's open visit. Returns
// sql.ErrNoRows when there is nothing to close.
func (r *VisitorRepository) CloseVisit(ctx context.Context, visitorID string, exitAt time.Time) error {
	const query = `UPDATE visits SET exit_at = $2 WHERE visitor_id = $1 AND exit_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, visitorID, exitAt)
	if err != nil {
		return fmt.Errorf("close visit: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListVisits returns visit records joined with visitor data, newest first.
func (r *VisitorRepository) ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.VisitDetail, int, error) {
	baseQuery := `FROM visits vi JOIN visitors v ON v.id = vi.visitor_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("vi.entry_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("vi.entry_at < $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(v.full_name) LIKE $%d OR v.cedula LIKE $%d OR LOWER(vi.host_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
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
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT vi.id, vi.visitor_id, vi.reason, vi.host_name, vi.entry_at, vi.exit_at, vi.notes, v.cedula, v.full_name, v.status %s ORDER BY vi.entry_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var visits []models.VisitDetail
	if err := r.db.SelectContext(ctx, &visits, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	return visits, total, nil
}

// ListOpenVisits returns everyone currently inside the facility.
func (r *VisitorRepository) ListOpenVisits(ctx context.Context) ([]models.VisitDetail, error) {
	const query = `SELECT vi.id, vi.visitor_id, vi.reason, vi.host_name, vi.entry_at, vi.exit_at, vi.notes, v.cedula, v.full_name, v.status
		FROM visits vi JOIN visitors v ON v.id = vi.visitor_id
		WHERE vi.exit_at IS NULL ORDER BY vi.entry_at ASC`
	var visits []models.VisitDetail
	if err := r.db.SelectContext(ctx, &visits, query); err != nil {
		return nil, fmt.Errorf("list open visits: %w", err)
	}
	return visits, nil
}

// CountEntriesSince returns how many entries were registered at or after the
// given instant.
func (r *VisitorRepository) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM visits WHERE entry_at >= $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, fmt.Errorf("count entries since: %w", err)
	}
	return count, nil
}

// CountOpenVisits returns how many visits have no exit stamped.
func (r *VisitorRepository) CountOpenVisits(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM visits WHERE exit_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count open visits: %w", err)
	}
	return count, nil
}

// DailyEntrySeries returns per-day entry counts starting at since, oldest
// first. Days without entries are absent from the result.
func (r *VisitorRepository) DailyEntrySeries(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	const query = `SELECT TO_CHAR(entry_at::date, 'YYYY-MM-DD') AS day, COUNT(*) AS count
		FROM visits WHERE entry_at >= $1 GROUP BY entry_at::date ORDER BY entry_at::date ASC`
	var series []models.DailyCount
	if err := r.db.SelectContext(ctx, &series, query, since); err != nil {
		return nil, fmt.Errorf("daily entry series: %w", err)
	}
	return series, nil
}

package models

import "time"

// VisitorStatus classifies the person at the gate.
type VisitorStatus string

const (
	VisitorStatusNatural  VisitorStatus = "natural"
	VisitorStatusEmployee VisitorStatus = "empleado"
	VisitorStatusExternal VisitorStatus = "externo"
	VisitorStatusDenied   VisitorStatus = "denegado"
)

// Visitor holds the personal record, keyed by national ID (cédula).
type Visitor struct {
	ID        string        `db:"id" json:"id"`
	Cedula    string        `db:"cedula" json:"cedula"`
	FullName  string        `db:"full_name" json:"full_name"`
	Email     string        `db:"email" json:"email"`
	Phone     string        `db:"phone" json:"phone"`
	Status    VisitorStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Visit is one entry/exit cycle for a visitor. ExitAt is nil while the
// person is still inside the facility.
type Visit struct {
	ID        string     `db:"id" json:"id"`
	VisitorID string     `db:"visitor_id" json:"visitor_id"`
	Reason    string     `db:"reason" json:"reason"`
	HostName  string     `db:"host_name" json:"host_name"`
	EntryAt   time.Time  `db:"entry_at" json:"entry_at"`
	ExitAt    *time.Time `db:"exit_at" json:"exit_at,omitempty"`
	Notes     string     `db:"notes" json:"notes"`
}

// VisitDetail joins a visit with its visitor for listings.
type VisitDetail struct {
	Visit
	Cedula   string        `db:"cedula" json:"cedula"`
	FullName string        `db:"full_name" json:"full_name"`
	Status   VisitorStatus `db:"status" json:"status"`
}

// CheckInRequest registers an entry, creating or refreshing the visitor.
type CheckInRequest struct {
	Cedula   string        `json:"cedula" validate:"required"`
	FullName string        `json:"full_name" validate:"required"`
	Email    string        `json:"email" validate:"omitempty,email"`
	Phone    string        `json:"phone"`
	Status   VisitorStatus `json:"status" validate:"omitempty,oneof=natural empleado externo denegado"`
	Reason   string        `json:"reason" validate:"required"`
	HostName string        `json:"host_name" validate:"required"`
	Notes    string        `json:"notes"`
}

// VisitFilter captures report filtering criteria.
type VisitFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Page     int
	PageSize int
}

// DashboardStats summarises activity for the landing page.
type DashboardStats struct {
	VisitorsToday   int          `json:"visitors_today"`
	CurrentlyInside int          `json:"currently_inside"`
	WeeklySeries    []DailyCount `json:"weekly_series"`
	RecentActivity  []AuditEntry `json:"recent_activity"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

// DailyCount is one point of the last-7-days entry series.
type DailyCount struct {
	Day   string `db:"day" json:"day"`
	Count int    `db:"count" json:"count"`
}

package models

import "time"

// Audit action labels. The Spanish labels are load-bearing: operators filter
// the bitácora by them and the exported reports print them verbatim.
const (
	AuditActionLoginSuccess     = "Inicio de sesión"
	AuditActionLoginFailure     = "Fallo de login"
	AuditActionAccessDenied     = "Acceso denegado"
	AuditActionDuplicateSession = "Sesión Duplicada Rechazada"
	AuditActionLogout           = "Cierre de sesión"
	AuditActionWarnLogout       = "Cierre de sesión / Advertencia"
	AuditActionPasswordChange   = "Cambio de contraseña"
	AuditActionVisitorCheckIn   = "Registro de Visitante"
	AuditActionVisitorCheckOut  = "Egreso de Visitante"
	AuditActionVisitorUpdate    = "Edición de Visitante"
	AuditActionVisitorDelete    = "Eliminación de registro"
	AuditActionIPBlocked        = "Bloqueo Manual de IP"
	AuditActionIPEdited         = "Edición de IP"
	AuditActionIPDeleted        = "Eliminación de IP"
	AuditActionExportPDF        = "Exportación de Bitácora PDF"
	AuditActionExportTXT        = "Exportación de Bitácora TXT"
	AuditActionBackup           = "Respaldo Completo de Base de Datos"
	AuditActionRestore          = "Restauración de Base de Datos"
	AuditActionUserCreate       = "Creación de Usuario"
	AuditActionUserUpdate       = "Actualización de Usuario"
	AuditActionUserDelete       = "Eliminación de Usuario"
)

// AuditEntry is an immutable bitácora record. UserID is a weak reference:
// deleting the user nulls the column, never the row.
type AuditEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Username  *string   `db:"username" json:"username,omitempty"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	OriginIP  string    `db:"origin_ip" json:"origin_ip"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter captures listing criteria for the bitácora.
type AuditFilter struct {
	Action   string
	Search   string
	Page     int
	PageSize int
}

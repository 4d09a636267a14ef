package models

import "time"

// BackupArchive is the full-database JSON dump produced by the backup
// endpoint and accepted back by restore.
type BackupArchive struct {
	Version      int             `json:"version"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Users        []BackupUser    `json:"users"`
	Visitors     []Visitor       `json:"visitors"`
	Visits       []Visit         `json:"visits"`
	AuditEntries []AuditEntry    `json:"audit_entries"`
	IPPolicies   []IPPolicyEntry `json:"ip_policies"`
}

// BackupUser mirrors User but serialises the password hash, which API
// responses never expose. Without it a restored database would have no
// usable credentials.
type BackupUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	FullName     string     `json:"full_name"`
	Superuser    bool       `json:"superuser"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToUser converts a backup row back to the storage model.
func (b BackupUser) ToUser() User {
	return User{
		ID:           b.ID,
		Username:     b.Username,
		Email:        b.Email,
		PasswordHash: b.PasswordHash,
		FullName:     b.FullName,
		Superuser:    b.Superuser,
		Active:       b.Active,
		LastLogin:    b.LastLogin,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// FromUser converts a storage row to its backup form.
func FromUser(u User) BackupUser {
	return BackupUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Superuser:    u.Superuser,
		Active:       u.Active,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

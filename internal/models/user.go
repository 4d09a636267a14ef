package models

import "time"

// User represents an application user stored in the users table. Active is
// flipped to false automatically after three consecutive failed logins and
// only an administrator can flip it back.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Superuser    bool       `db:"superuser" json:"superuser"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateUserRequest registers a new account. MustChangePassword forces a
// credential change on the first successful login.
type CreateUserRequest struct {
	Username           string `json:"username" validate:"required,min=3"`
	Email              string `json:"email" validate:"required,email"`
	Password           string `json:"password" validate:"required,min=6"`
	FullName           string `json:"full_name" validate:"required"`
	Superuser          bool   `json:"superuser"`
	MustChangePassword bool   `json:"must_change_password"`
}

// UpdateUserRequest edits mutable account fields. Nil means "leave as is".
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FullName  *string `json:"full_name"`
	Superuser *bool   `json:"superuser"`
	Active    *bool   `json:"active"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

// LoginAttempt is the per-user failed-login counter. Created lazily on the
// first failure or first successful login; never deleted.
type LoginAttempt struct {
	UserID             string `db:"user_id" json:"user_id"`
	Attempts           int    `db:"attempts" json:"attempts"`
	MustChangePassword bool   `db:"must_change_password" json:"must_change_password"`
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// LockoutRepository provides database access for the per-user failed-login
// counters. One row per user; the user id is the primary key.
type LockoutRepository struct {
	db *sqlx.DB
}

// NewLockoutRepository creates a new instance of LockoutRepository.
func NewLockoutRepository(db *sqlx.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// IncrementFailure bumps the counter for a user and, when the new count
// reaches the threshold, deactivates the account in the same transaction.
// Locked is reported only on the increment that hits the threshold exactly,
// so concurrent failures cannot trigger the deactivation side effect twice.
func (r *LockoutRepository) IncrementFailure(ctx context.Context, userID string, threshold int) (attempts int, locked bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin increment failure: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsert = `INSERT INTO login_attempts (user_id, attempts) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET attempts = login_attempts.attempts + 1
		RETURNING attempts`
	if err := tx.GetContext(ctx, &attempts, upsert, userID); err != nil {
		return 0, false, fmt.Errorf("increment login attempts: %w", err)
	}

	if attempts == threshold {
		const deactivate = `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, deactivate, userID, time.Now().UTC()); err != nil {
			return 0, false, fmt.Errorf("deactivate locked user: %w", err)
		}
		locked = true
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit increment failure: %w", err)
	}
	return attempts, locked, nil
}

// ResetAttempts zeroes the counter, creating the row when absent. The
// must_change_password flag is untouched.
func (r *LockoutRepository) ResetAttempts(ctx context.Context, userID string) error {
	const query = `INSERT INTO login_attempts (user_id, attempts) VALUES ($1, 0)
		ON CONFLICT (user_id) DO UPDATE SET attempts = 0`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

// Find returns the counter row for a user.
func (r *LockoutRepository) Find(ctx context.Context, userID string) (*models.LoginAttempt, error) {
	const query = `SELECT user_id, attempts, must_change_password FROM login_attempts WHERE user_id = $1 LIMIT 1`
	var attempt models.LoginAttempt
	if err := r.db.GetContext(ctx, &attempt, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find login attempts: %w", err)
	}
	return &attempt, nil
}

// SetMustChangePassword flags or clears the mandatory password change marker,
// creating the counter row when absent.
func (r *LockoutRepository) SetMustChangePassword(ctx context.Context, userID string, must bool) error {
	const query = `INSERT INTO login_attempts (user_id, attempts, must_change_password) VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET must_change_password = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, must); err != nil {
		return fmt.Errorf("set must change password: %w", err)
	}
	return nil
}

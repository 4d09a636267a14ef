package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bav-systems/visitas-api/internal/models"
)

// SessionRepository provides database access for the per-IP active-session
// registry. One row per address; the address is the primary key.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Touch upserts the row for an address. An inactive row is taken over by the
// caller; an active row keeps its holder's signature, and last_seen moves
// only when the caller is the holder, so a contender's requests never keep
// an absent holder's row looking fresh.
func (r *SessionRepository) Touch(ctx context.Context, address, signature string, now time.Time) error {
	const query = `INSERT INTO active_sessions (address, client_signature, last_seen, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (address) DO UPDATE SET
			last_seen = CASE WHEN active_sessions.active AND active_sessions.client_signature <> EXCLUDED.client_signature THEN active_sessions.last_seen ELSE EXCLUDED.last_seen END,
			active = TRUE,
			client_signature = CASE WHEN active_sessions.active THEN active_sessions.client_signature ELSE EXCLUDED.client_signature END`
	if _, err := r.db.ExecContext(ctx, query, address, signature, now); err != nil {
		return fmt.Errorf("touch active session: %w", err)
	}
	return nil
}

// DeactivateStale flips active=false for every row not seen since the
// cutoff. Running it twice with the same cutoff is a no-op the second time.
func (r *SessionRepository) DeactivateStale(ctx context.Context, cutoff time.Time) error {
	const query = `UPDATE active_sessions SET active = FALSE WHERE last_seen < $1 AND active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("deactivate stale sessions: %w", err)
	}
	return nil
}

// HasConflict reports whether an active row holds the address under a
// different client signature.
func (r *SessionRepository) HasConflict(ctx context.Context, address, signature string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM active_sessions WHERE address = $1 AND active = TRUE AND client_signature <> $2)`
	var conflict bool
	if err := r.db.GetContext(ctx, &conflict, query, address, signature); err != nil {
		return false, fmt.Errorf("check session conflict: %w", err)
	}
	return conflict, nil
}

// Claim atomically checks for a conflicting holder and claims the slot. The
// row lock serialises concurrent logins from the same address: exactly one of
// two simultaneous claims with different signatures wins. A holder not seen
// since the cutoff no longer blocks the slot; the claim reclaims it in the
// same transaction, so a vanished browser cannot hold an address hostage.
func (r *SessionRepository) Claim(ctx context.Context, address, signature string, now, cutoff time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current models.ActiveSession
	err = tx.GetContext(ctx, &current, `SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 FOR UPDATE`, address)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("lock session row: %w", err)
	}

	if err == nil && current.Active && current.ClientSignature != signature && current.LastSeen.After(cutoff) {
		return false, nil
	}

	const upsert = `INSERT INTO active_sessions (address, client_signature, last_seen, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (address) DO UPDATE SET client_signature = EXCLUDED.client_signature, last_seen = EXCLUDED.last_seen, active = TRUE`
	if _, err := tx.ExecContext(ctx, upsert, address, signature, now); err != nil {
		return false, fmt.Errorf("claim session slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim: %w", err)
	}
	return true, nil
}

// Release frees the slot for an address regardless of who holds it.
func (r *SessionRepository) Release(ctx context.Context, address string) error {
	const query = `UPDATE active_sessions SET active = FALSE WHERE address = $1`
	if _, err := r.db.ExecContext(ctx, query, address); err != nil {
		return fmt.Errorf("release session slot: %w", err)
	}
	return nil
}

// Find returns the row for an address.
func (r *SessionRepository) Find(ctx context.Context, address string) (*models.ActiveSession, error) {
	const query = `SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 LIMIT 1`
	var session models.ActiveSession
	if err := r.db.GetContext(ctx, &session, query, address); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &session, nil
}

// ListActive returns all currently occupied slots, most recent first.
func (r *SessionRepository) ListActive(ctx context.Context) ([]models.ActiveSession, error) {
	const query = `SELECT address, client_signature, last_seen, active FROM active_sessions WHERE active = TRUE ORDER BY last_seen DESC`
	var sessions []models.ActiveSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

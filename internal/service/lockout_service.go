package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type lockoutRepository interface {
	IncrementFailure(ctx context.Context, userID string, threshold int) (int, bool, error)
	ResetAttempts(ctx context.Context, userID string) error
	Find(ctx context.Context, userID string) (*models.LoginAttempt, error)
	SetMustChangePassword(ctx context.Context, userID string, must bool) error
}

// LockoutService counts consecutive failed logins per user and locks the
// account when the counter reaches the configured threshold.
type LockoutService struct {
	repo      lockoutRepository
	logger    *zap.Logger
	threshold int
}

// NewLockoutService constructs a LockoutService instance.
func NewLockoutService(repo lockoutRepository, logger *zap.Logger, threshold int) *LockoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &LockoutService{repo: repo, logger: logger, threshold: threshold}
}

// Threshold returns the configured lockout limit.
func (s *LockoutService) Threshold() int {
	return s.threshold
}

// RecordFailure bumps the user's counter. Locked is true exactly on the
// attempt that deactivated the account.
func (s *LockoutService) RecordFailure(ctx context.Context, userID string) (attempts int, locked bool, err error) {
	attempts, locked, err = s.repo.IncrementFailure(ctx, userID, s.threshold)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record login failure")
	}
	return attempts, locked, nil
}

// RecordSuccess resets the counter. The must_change_password flag survives.
func (s *LockoutService) RecordSuccess(ctx context.Context, userID string) error {
	if err := s.repo.ResetAttempts(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset login attempts")
	}
	return nil
}

// MustChangePassword reports whether the user is flagged for a mandatory
// password change. A missing counter row means no.
func (s *LockoutService) MustChangePassword(ctx context.Context, userID string) (bool, error) {
	attempt, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login attempts")
	}
	return attempt.MustChangePassword, nil
}

// FlagMustChangePassword marks the user for a mandatory password change.
func (s *LockoutService) FlagMustChangePassword(ctx context.Context, userID string) error {
	if err := s.repo.SetMustChangePassword(ctx, userID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag password change")
	}
	return nil
}

// ClearMustChangePassword clears the flag after a successful password change.
func (s *LockoutService) ClearMustChangePassword(ctx context.Context, userID string) error {
	if err := s.repo.SetMustChangePassword(ctx, userID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear password change flag")
	}
	return nil
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type sessionRepository interface {
	Touch(ctx context.Context, address, signature string, now time.Time) error
	DeactivateStale(ctx context.Context, cutoff time.Time) error
	HasConflict(ctx context.Context, address, signature string) (bool, error)
	Claim(ctx context.Context, address, signature string, now, cutoff time.Time) (bool, error)
	Release(ctx context.Context, address string) error
	ListActive(ctx context.Context) ([]models.ActiveSession, error)
}

// SessionConfig tunes the per-IP session registry.
type SessionConfig struct {
	// TTL is the staleness cutoff for the sweep.
	TTL time.Duration
	// SignatureMaxLen caps stored client signatures.
	SignatureMaxLen int
}

// SessionService maintains the one-browser-session-per-IP registry.
type SessionService struct {
	repo   sessionRepository
	logger *zap.Logger
	config SessionConfig
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(repo sessionRepository, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.SignatureMaxLen <= 0 {
		config.SignatureMaxLen = 500
	}
	return &SessionService{repo: repo, logger: logger, config: config}
}

// Touch refreshes the caller's row and then sweeps stale rows. Touch runs
// first so the caller's own row always survives the sweep.
func (s *SessionService) Touch(ctx context.Context, address, signature string) error {
	now := time.Now().UTC()
	if err := s.repo.Touch(ctx, address, s.capSignature(signature), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to touch session")
	}
	if err := s.repo.DeactivateStale(ctx, now.Add(-s.config.TTL)); err != nil {
		s.logger.Warn("failed to sweep stale sessions", zap.Error(err))
	}
	return nil
}

// HasConflict reports whether a different signature actively holds the address.
func (s *SessionService) HasConflict(ctx context.Context, address, signature string) (bool, error) {
	conflict, err := s.repo.HasConflict(ctx, address, s.capSignature(signature))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session conflict")
	}
	return conflict, nil
}

// Claim atomically takes the slot for an address. Returns false when another
// signature holds it and has been seen within the TTL; a stale holder is
// reclaimed rather than waited out.
func (s *SessionService) Claim(ctx context.Context, address, signature string) (bool, error) {
	now := time.Now().UTC()
	claimed, err := s.repo.Claim(ctx, address, s.capSignature(signature), now, now.Add(-s.config.TTL))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim session slot")
	}
	return claimed, nil
}

// Release frees the slot for an address regardless of holder.
func (s *SessionService) Release(ctx context.Context, address string) error {
	if err := s.repo.Release(ctx, address); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release session slot")
	}
	return nil
}

// ListActive returns every occupied slot for the admin device listing.
func (s *SessionService) ListActive(ctx context.Context) ([]models.ActiveSession, error) {
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active sessions")
	}
	return sessions, nil
}

func (s *SessionService) capSignature(signature string) string {
	if len(signature) > s.config.SignatureMaxLen {
		return signature[:s.config.SignatureMaxLen]
	}
	return signature
}

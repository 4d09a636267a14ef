package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error)
	ListAll(ctx context.Context) ([]models.AuditEntry, error)
	Recent(ctx context.Context, n int) ([]models.AuditEntry, error)
}

// AuditService writes and reads the bitácora.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends a bitácora entry. Failures are logged and swallowed so the
// primary operation never aborts because its audit write did.
func (s *AuditService) Record(ctx context.Context, userID *string, action, details, originIP string) {
	entry := &models.AuditEntry{
		UserID:   userID,
		Action:   action,
		Details:  details,
		OriginIP: originIP,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.String("origin_ip", originIP),
			zap.Error(err))
	}
}

// List returns paginated bitácora entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, total, nil
}

// ListAll returns the full bitácora for the exporters.
func (s *AuditService) ListAll(ctx context.Context) ([]models.AuditEntry, error) {
	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit entries")
	}
	return entries, nil
}

// Recent returns the latest n entries for the dashboard.
func (s *AuditService) Recent(ctx context.Context, n int) ([]models.AuditEntry, error) {
	entries, err := s.repo.Recent(ctx, n)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent audit entries")
	}
	return entries, nil
}

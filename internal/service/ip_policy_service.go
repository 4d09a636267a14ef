package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type ipPolicyRepository interface {
	FindByAddress(ctx context.Context, address string) (*models.IPPolicyEntry, error)
	Upsert(ctx context.Context, entry *models.IPPolicyEntry) error
	SetAllowed(ctx context.Context, address string, allowed bool) error
	Delete(ctx context.Context, address string) error
	List(ctx context.Context) ([]models.IPPolicyEntry, error)
}

type ipAuditRecorder interface {
	Record(ctx context.Context, userID *string, action, details, originIP string)
}

// IPPolicyService answers allow/deny questions and manages the policy table.
// The static deny list is injected configuration and always wins over rows.
type IPPolicyService struct {
	repo       ipPolicyRepository
	audit      ipAuditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	blockedIPs map[string]struct{}
}

// NewIPPolicyService constructs an IPPolicyService instance.
func NewIPPolicyService(repo ipPolicyRepository, audit ipAuditRecorder, validate *validator.Validate, logger *zap.Logger, blockedIPs []string) *IPPolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	blocked := make(map[string]struct{}, len(blockedIPs))
	for _, ip := range blockedIPs {
		blocked[ip] = struct{}{}
	}
	return &IPPolicyService{repo: repo, audit: audit, validator: validate, logger: logger, blockedIPs: blocked}
}

// IsDenied reports whether an address may not log in: it is on the static
// deny list, or a policy row exists with allowed=false. A missing row means
// allowed.
func (s *IPPolicyService) IsDenied(ctx context.Context, address string) (bool, error) {
	if _, blocked := s.blockedIPs[address]; blocked {
		return true, nil
	}

	entry, err := s.repo.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ip policy")
	}
	return !entry.Allowed, nil
}

// Upsert creates or overwrites the policy row for an address.
func (s *IPPolicyService) Upsert(ctx context.Context, actorID *string, actorIP string, req models.UpsertIPPolicyRequest) (*models.IPPolicyEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ip policy payload")
	}

	entry := &models.IPPolicyEntry{
		Address:      req.Address,
		Allowed:      req.Allowed,
		DeviceLabel:  req.DeviceLabel,
		OSLabel:      req.OSLabel,
		BrowserLabel: req.BrowserLabel,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert ip policy")
	}

	action := models.AuditActionIPEdited
	if !req.Allowed {
		action = models.AuditActionIPBlocked
	}
	s.audit.Record(ctx, actorID, action, fmt.Sprintf("IP %s registrada (permitida: %t)", req.Address, req.Allowed), actorIP)

	return entry, nil
}

// SetAllowed toggles the flag for an existing address.
func (s *IPPolicyService) SetAllowed(ctx context.Context, actorID *string, actorIP, address string, allowed bool) error {
	if err := s.repo.SetAllowed(ctx, address, allowed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ip policy not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle ip policy")
	}

	action := models.AuditActionIPEdited
	details := fmt.Sprintf("IP %s habilitada", address)
	if !allowed {
		action = models.AuditActionIPBlocked
		details = fmt.Sprintf("IP %s bloqueada manualmente", address)
	}
	s.audit.Record(ctx, actorID, action, details, actorIP)

	return nil
}

// Delete removes the policy row for an address.
func (s *IPPolicyService) Delete(ctx context.Context, actorID *string, actorIP, address string) error {
	if err := s.repo.Delete(ctx, address); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete ip policy")
	}
	s.audit.Record(ctx, actorID, models.AuditActionIPDeleted, fmt.Sprintf("IP %s eliminada de la tabla de control", address), actorIP)
	return nil
}

// List returns every policy row.
func (s *IPPolicyService) List(ctx context.Context) ([]models.IPPolicyEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ip policies")
	}
	return entries, nil
}

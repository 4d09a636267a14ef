package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type visitorRepository interface {
	FindByCedula(ctx context.Context, cedula string) (*models.Visitor, error)
	FindByID(ctx context.Context, id string) (*models.Visitor, error)
	Upsert(ctx context.Context, visitor *models.Visitor) error
	Update(ctx context.Context, visitor *models.Visitor) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, search string, page, pageSize int) ([]models.Visitor, int, error)
	HasEntryToday(ctx context.Context, visitorID string, day time.Time) (bool, error)
	CreateVisit(ctx context.Context, visit *models.Visit) error
	CloseVisit(ctx context.Context, visitorID string, exitAt time.Time) error
	ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.VisitDetail, int, error)
	ListOpenVisits(ctx context.Context) ([]models.VisitDetail, error)
}

// VisitorService handles gate check-in and check-out plus the directory.
type VisitorService struct {
	repo      visitorRepository
	audit     ipAuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVisitorService constructs a VisitorService instance.
func NewVisitorService(repo visitorRepository, audit ipAuditRecorder, validate *validator.Validate, logger *zap.Logger) *VisitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VisitorService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// CheckIn registers an entry, creating or refreshing the visitor record by
// cédula. A visitor still inside cannot check in again.
func (s *VisitorService) CheckIn(ctx context.Context, actorID *string, actorIP string, req models.CheckInRequest) (*models.VisitDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	status := req.Status
	if status == "" {
		status = models.VisitorStatusExternal
	}
	if status == models.VisitorStatusDenied {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "el visitante tiene el acceso denegado")
	}

	visitor := &models.Visitor{
		Cedula:   req.Cedula,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Status:   status,
	}
	if existing, err := s.repo.FindByCedula(ctx, req.Cedula); err == nil {
		if existing.Status == models.VisitorStatusDenied {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "el visitante tiene el acceso denegado")
		}
		visitor.ID = existing.ID
		visitor.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}

	if err := s.repo.Upsert(ctx, visitor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save visitor")
	}

	now := time.Now().UTC()
	duplicate, err := s.repo.HasEntryToday(ctx, visitor.ID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate entry")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("información duplicada: la cédula %s ya registró un ingreso hoy", visitor.Cedula))
	}

	visit := &models.Visit{
		VisitorID: visitor.ID,
		Reason:    req.Reason,
		HostName:  req.HostName,
		EntryAt:   now,
		Notes:     req.Notes,
	}
	if err := s.repo.CreateVisit(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create visit")
	}

	s.audit.Record(ctx, actorID, models.AuditActionVisitorCheckIn, fmt.Sprintf("Ingreso de %s (cédula %s)", visitor.FullName, visitor.Cedula), actorIP)

	return &models.VisitDetail{
		Visit:    *visit,
		Cedula:   visitor.Cedula,
		FullName: visitor.FullName,
		Status:   visitor.Status,
	}, nil
}

// CheckOut stamps the exit on the visitor's open visit.
func (s *VisitorService) CheckOut(ctx context.Context, actorID *string, actorIP, cedula string) error {
	visitor, err := s.repo.FindByCedula(ctx, cedula)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "visitante no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}

	if err := s.repo.CloseVisit(ctx, visitor.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "el visitante no tiene un ingreso abierto")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close visit")
	}

	s.audit.Record(ctx, actorID, models.AuditActionVisitorCheckOut, fmt.Sprintf("Egreso de %s (cédula %s)", visitor.FullName, visitor.Cedula), actorIP)
	return nil
}

// Update edits a visitor's personal data.
func (s *VisitorService) Update(ctx context.Context, actorID *string, actorIP, id string, req models.CheckInRequest) (*models.Visitor, error) {
	visitor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitante no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}

	visitor.FullName = req.FullName
	visitor.Email = req.Email
	visitor.Phone = req.Phone
	if req.Status != "" {
		visitor.Status = req.Status
	}
	if err := s.repo.Update(ctx, visitor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visitor")
	}

	s.audit.Record(ctx, actorID, models.AuditActionVisitorUpdate, fmt.Sprintf("Datos de %s (cédula %s) actualizados", visitor.FullName, visitor.Cedula), actorIP)
	return visitor, nil
}

// Delete removes a visitor and its visit history.
func (s *VisitorService) Delete(ctx context.Context, actorID *string, actorIP, id string) error {
	visitor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "visitante no encontrado")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete visitor")
	}

	s.audit.Record(ctx, actorID, models.AuditActionVisitorDelete, fmt.Sprintf("Registro de %s (cédula %s) eliminado", visitor.FullName, visitor.Cedula), actorIP)
	return nil
}

// List returns the visitor directory.
func (s *VisitorService) List(ctx context.Context, search string, page, pageSize int) ([]models.Visitor, int, error) {
	visitors, total, err := s.repo.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visitors")
	}
	return visitors, total, nil
}

// ListVisits returns filtered visit reports.
func (s *VisitorService) ListVisits(ctx context.Context, filter models.VisitFilter) ([]models.VisitDetail, int, error) {
	visits, total, err := s.repo.ListVisits(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visits")
	}
	return visits, total, nil
}

// ListActive returns everyone currently inside.
func (s *VisitorService) ListActive(ctx context.Context) ([]models.VisitDetail, error) {
	visits, err := s.repo.ListOpenVisits(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active visits")
	}
	return visits, nil
}

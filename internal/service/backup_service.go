package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

const backupVersion = 1

type backupRepository interface {
	DumpUsers(ctx context.Context) ([]models.User, error)
	DumpVisitors(ctx context.Context) ([]models.Visitor, error)
	DumpVisits(ctx context.Context) ([]models.Visit, error)
	DumpAuditEntries(ctx context.Context) ([]models.AuditEntry, error)
	DumpIPPolicies(ctx context.Context) ([]models.IPPolicyEntry, error)
	RestoreUsers(ctx context.Context, users []models.User) error
	RestoreVisitors(ctx context.Context, visitors []models.Visitor) error
	RestoreVisits(ctx context.Context, visits []models.Visit) error
	RestoreAuditEntries(ctx context.Context, entries []models.AuditEntry) error
	RestoreIPPolicies(ctx context.Context, entries []models.IPPolicyEntry) error
}

type backupArchiver interface {
	Archive(filename string, payload []byte) error
}

// BackupService produces and consumes full-database JSON archives.
type BackupService struct {
	repo     backupRepository
	audit    ipAuditRecorder
	archiver backupArchiver
	logger   *zap.Logger
}

// NewBackupService constructs a BackupService instance. The archiver keeps a
// server-side copy of each export and may be nil.
func NewBackupService(repo backupRepository, audit ipAuditRecorder, archiver backupArchiver, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{repo: repo, audit: audit, archiver: archiver, logger: logger}
}

// Export dumps every table into a JSON archive and returns filename plus
// payload.
func (s *BackupService) Export(ctx context.Context, actorID *string, actorIP string) (string, []byte, error) {
	users, err := s.repo.DumpUsers(ctx)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dump users")
	}
	visitors, err := s.repo.DumpVisitors(ctx)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dump visitors")
	}
	visits, err := s.repo.DumpVisits(ctx)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dump visits")
	}
	entries, err := s.repo.DumpAuditEntries(ctx)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dump audit entries")
	}
	policies, err := s.repo.DumpIPPolicies(ctx)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dump ip policies")
	}

	archive := models.BackupArchive{
		Version:      backupVersion,
		GeneratedAt:  time.Now().UTC(),
		Users:        make([]models.BackupUser, 0, len(users)),
		Visitors:     visitors,
		Visits:       visits,
		AuditEntries: entries,
		IPPolicies:   policies,
	}
	for _, u := range users {
		archive.Users = append(archive.Users, models.FromUser(u))
	}

	payload, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to marshal backup archive")
	}

	s.audit.Record(ctx, actorID, models.AuditActionBackup, "Respaldo completo generado en formato JSON", actorIP)

	filename := fmt.Sprintf("respaldo_visitas_%s.json", time.Now().UTC().Format("20060102_150405"))
	if s.archiver != nil {
		if err := s.archiver.Archive(filename, payload); err != nil {
			s.logger.Warn("failed to schedule backup archive", zap.String("filename", filename), zap.Error(err))
		}
	}
	return filename, payload, nil
}

// Restore replays an archive over the current database. Rows are upserted by
// their natural keys; bitácora rows are insert-only.
func (s *BackupService) Restore(ctx context.Context, actorID *string, actorIP string, payload []byte) error {
	var archive models.BackupArchive
	if err := json.Unmarshal(payload, &archive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid backup archive")
	}
	if archive.Version != backupVersion {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported backup version %d", archive.Version))
	}

	users := make([]models.User, 0, len(archive.Users))
	for _, b := range archive.Users {
		users = append(users, b.ToUser())
	}

	if err := s.repo.RestoreUsers(ctx, users); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore users")
	}
	if err := s.repo.RestoreVisitors(ctx, archive.Visitors); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore visitors")
	}
	if err := s.repo.RestoreVisits(ctx, archive.Visits); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore visits")
	}
	if err := s.repo.RestoreAuditEntries(ctx, archive.AuditEntries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore audit entries")
	}
	if err := s.repo.RestoreIPPolicies(ctx, archive.IPPolicies); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore ip policies")
	}

	s.audit.Record(ctx, actorID, models.AuditActionRestore, fmt.Sprintf("Base de datos restaurada desde respaldo del %s", archive.GeneratedAt.Format("2006-01-02 15:04")), actorIP)

	return nil
}

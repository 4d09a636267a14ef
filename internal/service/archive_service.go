package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/pkg/jobs"
)

const archiveJobType = "persist-backup"

type archiveStore interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type archiveFile struct {
	filename string
	payload  []byte
}

// ArchiveServiceConfig tunes server-side backup retention.
type ArchiveServiceConfig struct {
	Retention time.Duration
}

// ArchiveService keeps a server-side copy of every generated backup. Writes
// run on a background queue so the download response is never delayed by
// disk I/O.
type ArchiveService struct {
	store  archiveStore
	queue  *jobs.Queue
	logger *zap.Logger
	cfg    ArchiveServiceConfig
}

// NewArchiveService constructs an ArchiveService around the given store.
func NewArchiveService(store archiveStore, logger *zap.Logger, cfg ArchiveServiceConfig) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}

	s := &ArchiveService{store: store, logger: logger, cfg: cfg}
	s.queue = jobs.NewQueue("backup-archive", s.handle, jobs.QueueConfig{
		Workers: 1,
		Logger:  logger,
	})
	return s
}

// Start launches the background workers.
func (s *ArchiveService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ArchiveService) Stop() {
	s.queue.Stop()
}

// Archive schedules a server-side copy of the archive. Failures never reach
// the caller; the download already carries the payload.
func (s *ArchiveService) Archive(filename string, payload []byte) error {
	copied := make([]byte, len(payload))
	copy(copied, payload)

	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    archiveJobType,
		Payload: archiveFile{filename: filename, payload: copied},
	})
}

func (s *ArchiveService) handle(_ context.Context, job jobs.Job) error {
	file, ok := job.Payload.(archiveFile)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.ID)
	}

	if _, err := s.store.Save(file.filename, file.payload); err != nil {
		return err
	}
	s.logger.Debug("backup archived", zap.String("filename", file.filename))

	if deleted, err := s.store.CleanupOlderThan(s.cfg.Retention); err != nil {
		s.logger.Warn("backup retention sweep failed", zap.Error(err))
	} else if len(deleted) > 0 {
		s.logger.Info("expired backups removed", zap.Int("count", len(deleted)))
	}
	return nil
}

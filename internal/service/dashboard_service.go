package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardVisitRepository interface {
	CountEntriesSince(ctx context.Context, since time.Time) (int, error)
	CountOpenVisits(ctx context.Context) (int, error)
	DailyEntrySeries(ctx context.Context, since time.Time) ([]models.DailyCount, error)
}

type dashboardAuditReader interface {
	Recent(ctx context.Context, n int) ([]models.AuditEntry, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL       time.Duration
	RecentActivity int
}

// DashboardService composes the landing-page statistics, cached in Redis.
type DashboardService struct {
	visits  dashboardVisitRepository
	audit   dashboardAuditReader
	cache   statsCache
	metrics cacheMetrics
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(visits dashboardVisitRepository, audit dashboardAuditReader, cache statsCache, metrics cacheMetrics, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentActivity <= 0 {
		cfg.RecentActivity = 5
	}
	return &DashboardService{
		visits:  visits,
		audit:   audit,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// Stats returns dashboard statistics, served from Redis when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			s.recordCache(true)
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	today, err := s.visits.CountEntriesSince(ctx, dayStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's entries")
	}

	inside, err := s.visits.CountOpenVisits(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count open visits")
	}

	series, err := s.visits.DailyEntrySeries(ctx, dayStart.AddDate(0, 0, -6))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly series")
	}

	recent, err := s.audit.Recent(ctx, s.cfg.RecentActivity)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		VisitorsToday:   today,
		CurrentlyInside: inside,
		WeeklySeries:    series,
		RecentActivity:  recent,
		GeneratedAt:     now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

func (s *DashboardService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

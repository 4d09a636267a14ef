package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type fakeVisitStats struct {
	today  int
	inside int
	series []models.DailyCount
	calls  int
}

func (f *fakeVisitStats) CountEntriesSince(ctx context.Context, since time.Time) (int, error) {
	f.calls++
	return f.today, nil
}

func (f *fakeVisitStats) CountOpenVisits(ctx context.Context) (int, error) {
	return f.inside, nil
}

func (f *fakeVisitStats) DailyEntrySeries(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	return f.series, nil
}

type fakeAuditReader struct {
	entries []models.AuditEntry
}

func (f *fakeAuditReader) Recent(ctx context.Context, n int) ([]models.AuditEntry, error) {
	return f.entries, nil
}

type fakeStatsCache struct {
	store map[string][]byte
	sets  int
}

func (f *fakeStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.store == nil {
		f.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = raw
	f.sets++
	return nil
}

func TestDashboardStatsComputesAndCaches(t *testing.T) {
	visits := &fakeVisitStats{today: 7, inside: 3, series: []models.DailyCount{{Day: "2026-08-29", Count: 7}}}
	audit := &fakeAuditReader{entries: []models.AuditEntry{{Action: models.AuditActionLoginSuccess}}}
	cache := &fakeStatsCache{}
	svc := NewDashboardService(visits, audit, cache, nil, zap.NewNop(), DashboardServiceConfig{CacheTTL: time.Minute})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.VisitorsToday)
	assert.Equal(t, 3, stats.CurrentlyInside)
	assert.Len(t, stats.RecentActivity, 1)
	assert.Equal(t, 1, cache.sets)

	// Second call is served from cache; the repository is not hit again.
	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, visits.calls)
}

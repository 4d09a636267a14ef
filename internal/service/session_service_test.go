package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
)

type fakeSessionRepo struct {
	rows        map[string]*models.ActiveSession
	sweepCount  int
	lastCutoff  time.Time
	lastTouched string
}

func (f *fakeSessionRepo) ensure() {
	if f.rows == nil {
		f.rows = make(map[string]*models.ActiveSession)
	}
}

func (f *fakeSessionRepo) Touch(ctx context.Context, address, signature string, now time.Time) error {
	f.ensure()
	f.lastTouched = signature
	if current, ok := f.rows[address]; ok {
		if current.Active && current.ClientSignature != signature {
			return nil
		}
		current.ClientSignature = signature
		current.LastSeen = now
		current.Active = true
		return nil
	}
	f.rows[address] = &models.ActiveSession{Address: address, ClientSignature: signature, LastSeen: now, Active: true}
	return nil
}

func (f *fakeSessionRepo) DeactivateStale(ctx context.Context, cutoff time.Time) error {
	f.sweepCount++
	f.lastCutoff = cutoff
	for _, row := range f.rows {
		if row.Active && row.LastSeen.Before(cutoff) {
			row.Active = false
		}
	}
	return nil
}

func (f *fakeSessionRepo) HasConflict(ctx context.Context, address, signature string) (bool, error) {
	row, ok := f.rows[address]
	return ok && row.Active && row.ClientSignature != signature, nil
}

func (f *fakeSessionRepo) Claim(ctx context.Context, address, signature string, now, cutoff time.Time) (bool, error) {
	f.ensure()
	if current, ok := f.rows[address]; ok && current.Active && current.ClientSignature != signature && current.LastSeen.After(cutoff) {
		return false, nil
	}
	f.rows[address] = &models.ActiveSession{Address: address, ClientSignature: signature, LastSeen: now, Active: true}
	return true, nil
}

func (f *fakeSessionRepo) Release(ctx context.Context, address string) error {
	if row, ok := f.rows[address]; ok {
		row.Active = false
	}
	return nil
}

func (f *fakeSessionRepo) ListActive(ctx context.Context) ([]models.ActiveSession, error) {
	var out []models.ActiveSession
	for _, row := range f.rows {
		if row.Active {
			out = append(out, *row)
		}
	}
	return out, nil
}

func TestTouchCapsSignature(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})

	long := strings.Repeat("x", 600)
	err := svc.Touch(context.Background(), "192.168.1.50", long)
	require.NoError(t, err)
	assert.Len(t, repo.lastTouched, 500)
}

func TestTouchRunsSweep(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})

	require.NoError(t, svc.Touch(context.Background(), "192.168.1.50", "Chrome/1"))
	assert.Equal(t, 1, repo.sweepCount)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), repo.lastCutoff, time.Minute)
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string]*models.ActiveSession{
		"192.168.1.50": {Address: "192.168.1.50", ClientSignature: "Chrome/1", LastSeen: time.Now().Add(-48 * time.Hour), Active: true},
	}}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, repo.DeactivateStale(context.Background(), cutoff))
	first := *repo.rows["192.168.1.50"]
	require.NoError(t, repo.DeactivateStale(context.Background(), cutoff))
	second := *repo.rows["192.168.1.50"]

	assert.Equal(t, first, second)
	assert.False(t, second.Active)
	_ = svc
}

func TestClaimReleaseRoundTrip(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})
	ctx := context.Background()

	claimed, err := svc.Claim(ctx, "192.168.1.50", "Chrome/1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = svc.Claim(ctx, "192.168.1.50", "Firefox/2")
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, svc.Release(ctx, "192.168.1.50"))

	claimed, err = svc.Claim(ctx, "192.168.1.50", "Firefox/2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestContenderTouchDoesNotKeepAbsentHolderAlive(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string]*models.ActiveSession{
		"192.168.1.50": {Address: "192.168.1.50", ClientSignature: "Chrome/1", LastSeen: time.Now().Add(-25 * time.Hour), Active: true},
	}}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})

	// A different browser's request must not refresh the holder's row, so
	// the sweep running on that same request reclaims the slot.
	require.NoError(t, svc.Touch(context.Background(), "192.168.1.50", "Firefox/2"))
	assert.False(t, repo.rows["192.168.1.50"].Active)

	claimed, err := svc.Claim(context.Background(), "192.168.1.50", "Firefox/2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimTakesOverStaleHolder(t *testing.T) {
	repo := &fakeSessionRepo{rows: map[string]*models.ActiveSession{
		"192.168.1.50": {Address: "192.168.1.50", ClientSignature: "Chrome/1", LastSeen: time.Now().Add(-25 * time.Hour), Active: true},
	}}
	svc := NewSessionService(repo, zap.NewNop(), SessionConfig{TTL: 24 * time.Hour, SignatureMaxLen: 500})

	claimed, err := svc.Claim(context.Background(), "192.168.1.50", "Firefox/2")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "Firefox/2", repo.rows["192.168.1.50"].ClientSignature)
}

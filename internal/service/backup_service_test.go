package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
)

type fakeBackupRepo struct {
	users    []models.User
	visitors []models.Visitor
	visits   []models.Visit
	entries  []models.AuditEntry
	policies []models.IPPolicyEntry

	restoredUsers   []models.User
	restoredEntries []models.AuditEntry
}

func (f *fakeBackupRepo) DumpUsers(context.Context) ([]models.User, error)       { return f.users, nil }
func (f *fakeBackupRepo) DumpVisitors(context.Context) ([]models.Visitor, error) { return f.visitors, nil }
func (f *fakeBackupRepo) DumpVisits(context.Context) ([]models.Visit, error)     { return f.visits, nil }
func (f *fakeBackupRepo) DumpAuditEntries(context.Context) ([]models.AuditEntry, error) {
	return f.entries, nil
}
func (f *fakeBackupRepo) DumpIPPolicies(context.Context) ([]models.IPPolicyEntry, error) {
	return f.policies, nil
}
func (f *fakeBackupRepo) RestoreUsers(_ context.Context, users []models.User) error {
	f.restoredUsers = users
	return nil
}
func (f *fakeBackupRepo) RestoreVisitors(context.Context, []models.Visitor) error { return nil }
func (f *fakeBackupRepo) RestoreVisits(context.Context, []models.Visit) error     { return nil }
func (f *fakeBackupRepo) RestoreAuditEntries(_ context.Context, entries []models.AuditEntry) error {
	f.restoredEntries = entries
	return nil
}
func (f *fakeBackupRepo) RestoreIPPolicies(context.Context, []models.IPPolicyEntry) error {
	return nil
}

type fakeBackupAudit struct{ actions []string }

func (f *fakeBackupAudit) Record(_ context.Context, _ *string, action, _, _ string) {
	f.actions = append(f.actions, action)
}

type fakeArchiver struct{ filenames []string }

func (f *fakeArchiver) Archive(filename string, _ []byte) error {
	f.filenames = append(f.filenames, filename)
	return nil
}

func TestBackupExportCarriesPasswordHashes(t *testing.T) {
	repo := &fakeBackupRepo{users: []models.User{{
		ID:           "u1",
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		Active:       true,
	}}}
	audit := &fakeBackupAudit{}
	archiver := &fakeArchiver{}
	svc := NewBackupService(repo, audit, archiver, zap.NewNop())

	filename, payload, err := svc.Export(context.Background(), nil, "127.0.0.1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filename, "respaldo_visitas_"))
	assert.True(t, strings.HasSuffix(filename, ".json"))

	var archive models.BackupArchive
	require.NoError(t, json.Unmarshal(payload, &archive))
	require.Len(t, archive.Users, 1)
	assert.Equal(t, "$2a$10$hash", archive.Users[0].PasswordHash)

	assert.Equal(t, []string{models.AuditActionBackup}, audit.actions)
	assert.Equal(t, []string{filename}, archiver.filenames)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	archive := models.BackupArchive{
		Version:     1,
		GeneratedAt: time.Now().UTC(),
		Users: []models.BackupUser{{
			ID:           "u1",
			Username:     "alice",
			PasswordHash: "$2a$10$hash",
		}},
		AuditEntries: []models.AuditEntry{{ID: "a1", Action: models.AuditActionLoginSuccess}},
	}
	payload, err := json.Marshal(archive)
	require.NoError(t, err)

	repo := &fakeBackupRepo{}
	audit := &fakeBackupAudit{}
	svc := NewBackupService(repo, audit, nil, zap.NewNop())

	require.NoError(t, svc.Restore(context.Background(), nil, "127.0.0.1", payload))

	require.Len(t, repo.restoredUsers, 1)
	assert.Equal(t, "$2a$10$hash", repo.restoredUsers[0].PasswordHash)
	require.Len(t, repo.restoredEntries, 1)
	assert.Equal(t, []string{models.AuditActionRestore}, audit.actions)
}

func TestBackupRestoreRejectsUnknownVersion(t *testing.T) {
	payload, err := json.Marshal(models.BackupArchive{Version: 99})
	require.NoError(t, err)

	svc := NewBackupService(&fakeBackupRepo{}, &fakeBackupAudit{}, nil, zap.NewNop())

	err = svc.Restore(context.Background(), nil, "127.0.0.1", payload)
	require.Error(t, err)
}

type fakeArchiveStore struct {
	saved chan string
}

func (f *fakeArchiveStore) Save(filename string, _ []byte) (string, error) {
	f.saved <- filename
	return filename, nil
}

func (f *fakeArchiveStore) CleanupOlderThan(time.Duration) ([]string, error) { return nil, nil }

func TestArchiveServicePersistsInBackground(t *testing.T) {
	store := &fakeArchiveStore{saved: make(chan string, 1)}
	svc := NewArchiveService(store, zap.NewNop(), ArchiveServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.NoError(t, svc.Archive("respaldo_visitas_test.json", []byte("{}")))

	select {
	case filename := <-store.saved:
		assert.Equal(t, "respaldo_visitas_test.json", filename)
	case <-time.After(2 * time.Second):
		t.Fatal("archive job never ran")
	}
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bav-systems/visitas-api/internal/models"
)

func TestCreateAuditEntry(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	err := repo.Create(context.Background(), &models.AuditEntry{
		UserID:   &userID,
		Action:   models.AuditActionLoginFailure,
		Details:  "Intento fallido 1/3 para: vigilante1",
		OriginIP: "192.168.1.10",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditEntriesFilteredByAction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	username := "vigilante1"
	userID := "u1"
	rows := sqlmock.NewRows([]string{"id", "user_id", "username", "action", "details", "origin_ip", "created_at"}).
		AddRow("a1", userID, username, models.AuditActionAccessDenied, "IP bloqueada: 10.0.0.1", "10.0.0.1", now)
	mock.ExpectQuery("SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin_ip, a.created_at FROM audit_entries").
		WithArgs(models.AuditActionAccessDenied).
		WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_entries`).
		WithArgs(models.AuditActionAccessDenied).
		WillReturnRows(countRows)

	entries, total, err := repo.List(context.Background(), models.AuditFilter{Action: models.AuditActionAccessDenied})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "IP bloqueada: 10.0.0.1", entries[0].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllAuditEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "username", "action", "details", "origin_ip", "created_at"}).
		AddRow("a1", nil, nil, models.AuditActionLogout, "Cierre de sesión manual", "192.168.1.10", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.id, a.user_id, u.username, a.action, a.details, a.origin_ip, a.created_at FROM audit_entries a LEFT JOIN users u ON u.id = a.user_id ORDER BY a.created_at DESC")).
		WillReturnRows(rows)

	entries, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

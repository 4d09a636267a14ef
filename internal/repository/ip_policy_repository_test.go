package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bav-systems/visitas-api/internal/models"
)

func TestFindByAddress(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIPPolicyRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "address", "allowed", "device_label", "os_label", "browser_label", "created_at", "updated_at"}).
		AddRow("p1", "192.168.1.10", false, "PC", "Windows", "Chrome", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, address, allowed, device_label, os_label, browser_label, created_at, updated_at FROM ip_policies WHERE address = $1 LIMIT 1")).
		WithArgs("192.168.1.10").
		WillReturnRows(rows)

	entry, err := repo.FindByAddress(context.Background(), "192.168.1.10")
	require.NoError(t, err)
	assert.False(t, entry.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIPPolicy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIPPolicyRepository(db)

	mock.ExpectExec("INSERT INTO ip_policies").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.IPPolicyEntry{Address: "192.168.1.10", Allowed: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAllowedMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewIPPolicyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ip_policies SET allowed = $2, updated_at = $3 WHERE address = $1")).
		WithArgs("10.9.9.9", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAllowed(context.Background(), "10.9.9.9", false)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchPreservesActiveSignature(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectExec("INSERT INTO active_sessions").
		WithArgs("192.168.1.10", "Firefox/2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Touch(context.Background(), "192.168.1.10", "Firefox/2", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("192.168.1.10", "Firefox/2").
		WillReturnRows(rows)

	conflict, err := repo.HasConflict(context.Background(), "192.168.1.10", "Firefox/2")
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRejectsDifferentSignature(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"address", "client_signature", "last_seen", "active"}).
		AddRow("192.168.1.10", "Chrome/1", now, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 FOR UPDATE")).
		WithArgs("192.168.1.10").
		WillReturnRows(rows)
	mock.ExpectRollback()

	claimed, err := repo.Claim(context.Background(), "192.168.1.10", "Firefox/2", now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimReclaimsStaleSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"address", "client_signature", "last_seen", "active"}).
		AddRow("192.168.1.50", "Chrome/1", now.Add(-25*time.Hour), true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 FOR UPDATE")).
		WithArgs("192.168.1.50").
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO active_sessions").
		WithArgs("192.168.1.50", "Firefox/2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), "192.168.1.50", "Firefox/2", now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimTakesFreeSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 FOR UPDATE")).
		WithArgs("192.168.1.10").
		WillReturnRows(sqlmock.NewRows([]string{"address", "client_signature", "last_seen", "active"}))
	mock.ExpectExec("INSERT INTO active_sessions").
		WithArgs("192.168.1.10", "Chrome/1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), "192.168.1.10", "Chrome/1", now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimIsIdempotentForSameSignature(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"address", "client_signature", "last_seen", "active"}).
		AddRow("192.168.1.10", "Chrome/1", now, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT address, client_signature, last_seen, active FROM active_sessions WHERE address = $1 FOR UPDATE")).
		WithArgs("192.168.1.10").
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO active_sessions").
		WithArgs("192.168.1.10", "Chrome/1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), "192.168.1.10", "Chrome/1", now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE active_sessions SET active = FALSE WHERE last_seen < $1 AND active = TRUE")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeactivateStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE active_sessions SET active = FALSE WHERE address = $1")).
		WithArgs("192.168.1.10").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Release(context.Background(), "192.168.1.10")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

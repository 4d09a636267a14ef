package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bav-systems/visitas-api/internal/models"
)

func TestUpsertAdoptsExistingRowID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRepository(db)

	// Another request registered the same cédula first; the upsert must hand
	// back the surviving row's id, not the one generated in memory.
	mock.ExpectQuery("INSERT INTO visitors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v-existing"))

	visitor := &models.Visitor{
		Cedula:   "12345678",
		FullName: "Ana Pérez",
		Status:   models.VisitorStatusNatural,
	}
	require.NoError(t, repo.Upsert(context.Background(), visitor))

	assert.Equal(t, "v-existing", visitor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertKeepsFreshIDWhenRowIsNew(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRepository(db)

	visitor := &models.Visitor{
		Cedula:   "87654321",
		FullName: "Luis Gómez",
		Status:   models.VisitorStatusNatural,
	}

	mock.ExpectQuery("INSERT INTO visitors").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v-new"))

	require.NoError(t, repo.Upsert(context.Background(), visitor))
	assert.Equal(t, "v-new", visitor.ID)
}

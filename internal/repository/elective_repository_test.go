package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

func TestElectiveRepositoryListByLevel(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewElectiveRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "area", "group_third", "group_fourth", "enabled_third", "enabled_fourth"}).
		AddRow(1, "Física", "A", 1, 2, true, true).
		AddRow(2, "Filosofía Política", "B", 2, 0, true, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM electives WHERE enabled_third = TRUE ORDER BY area ASC, name ASC")).
		WillReturnRows(rows)

	electives, err := repo.ListByLevel(context.Background(), models.LevelThird)
	require.NoError(t, err)
	require.Len(t, electives, 2)
	assert.Equal(t, 1, electives[0].Group(models.LevelThird))
	assert.Equal(t, "Área B: Filosofía Política", electives[1].Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElectiveRepositoryRejectsUnknownLevel(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewElectiveRepository(db)

	_, err := repo.ListByLevel(context.Background(), "second; DROP TABLE electives")
	assert.Error(t, err)
}

func TestElectiveRepositoryListGEByLevel(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewElectiveRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "level"}).
		AddRow(1, "Educación Física y Salud", models.LevelFourth).
		AddRow(2, "Religión", models.LevelFourth)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, level FROM ge_electives WHERE level = $1 ORDER BY name ASC")).
		WithArgs(models.LevelFourth).
		WillReturnRows(rows)

	electives, err := repo.ListGEByLevel(context.Background(), models.LevelFourth)
	require.NoError(t, err)
	assert.Len(t, electives, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListByLevel(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "level"}).
		AddRow(4, "3° Medio A", models.LevelThird).
		AddRow(5, "3° Medio B", models.LevelThird)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, level FROM classes WHERE level = $1 ORDER BY name ASC")).
		WithArgs(models.LevelThird).
		WillReturnRows(rows)

	classes, err := repo.ListByLevel(context.Background(), models.LevelThird)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, int64(5), classes[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

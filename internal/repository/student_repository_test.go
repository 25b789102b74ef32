package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

func TestStudentRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"run", "email", "full_name", "class_id"}).
		AddRow("11222333-K", "ana.perez@colegiotgs.cl", "Ana Pérez", 4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT run, email, full_name, class_id FROM students WHERE LOWER(email) = $1 LIMIT 1")).
		WithArgs("ana.perez@colegiotgs.cl").
		WillReturnRows(rows)

	student, err := repo.FindByEmail(context.Background(), "Ana.Perez@colegiotgs.cl")
	require.NoError(t, err)
	assert.Equal(t, &models.Student{RUN: "11222333-K", Email: "ana.perez@colegiotgs.cl", FullName: "Ana Pérez", ClassID: 4}, student)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByEmailNormalizesRUN(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"run", "email", "full_name", "class_id"}).
		AddRow(" 11222333-k", "ana.perez@colegiotgs.cl", "Ana Pérez", 4)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE LOWER(email) = $1")).
		WithArgs("ana.perez@colegiotgs.cl").
		WillReturnRows(rows)

	student, err := repo.FindByEmail(context.Background(), "ana.perez@colegiotgs.cl")
	require.NoError(t, err)
	assert.Equal(t, "11222333-K", student.RUN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE LOWER(email) = $1")).
		WithArgs("nadie@colegiotgs.cl").
		WillReturnError(sql.ErrNoRows)

	student, err := repo.FindByEmail(context.Background(), "nadie@colegiotgs.cl")
	assert.Nil(t, student)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

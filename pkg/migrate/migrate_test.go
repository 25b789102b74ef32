package migrate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "CREATE TABLE a (id INT);", strings.TrimSpace(ExtractUp(content)))
	assert.Equal(t, "SELECT 1;", ExtractUp("SELECT 1;"))
}

func TestApplySkipsRecordedFiles(t *testing.T) {
	db, mock := newMock(t)
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;")},
		"0002_b.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"README.md":  {Data: []byte("ignored")},
	}

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_lock($1)`)).WithArgs(int64(advisoryLockKey)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM schema_migrations WHERE name = $1`)).WithArgs("0001_a.sql").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM schema_migrations WHERE name = $1`)).WithArgs("0002_b.sql").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE b (id INT);`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (name) VALUES ($1)`)).WithArgs("0002_b.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_unlock($1)`)).WithArgs(int64(advisoryLockKey)).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Apply(context.Background(), db, fsys, ".", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackFailedFile(t *testing.T) {
	db, mock := newMock(t)
	fsys := fstest.MapFS{"0001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")}}

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_lock($1)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_migrations`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM schema_migrations`)).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE a`)).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_unlock($1)`)).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Apply(context.Background(), db, fsys, ".", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec migration 0001_a.sql")
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteBlobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLiteBlobStore(db)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestSQLiteWriteBlobUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blobs")).
		WithArgs("config", []byte(`{"a":1}`), time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.WriteBlob(context.Background(), "config", []byte(`{"a":1}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteWriteBlobError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blobs")).
		WillReturnError(errors.New("database is locked"))

	err := s.WriteBlob(context.Background(), "config", []byte("x"))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "write", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteReadBlob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM blobs WHERE key=?")).
		WithArgs("config").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("payload")))

	got, err := s.ReadBlob(context.Background(), "config")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteReadBlobNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM blobs")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.ReadBlob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDeleteBlob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blobs WHERE key=?")).
		WithArgs("mqtt.credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteBlob(context.Background(), "mqtt.credentials"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRealFile(t *testing.T) {
	db, err := OpenSQLite(t.TempDir() + "/blobs.db")
	require.NoError(t, err)
	defer db.Close()
	s := NewSQLiteBlobStore(db)
	ctx := context.Background()

	_, err = s.ReadBlob(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.WriteBlob(ctx, "k", []byte("v1")))
	require.NoError(t, s.WriteBlob(ctx, "k", []byte("v2")))
	got, err := s.ReadBlob(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.DeleteBlob(ctx, "k"))
	_, err = s.ReadBlob(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

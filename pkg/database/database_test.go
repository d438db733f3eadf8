package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewDatabaseInstance(sqlx.NewDb(sqlDB, "postgres"), logger), mock
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "unique violation", err: &pq.Error{Code: CodeUniqueViolation}, expected: true},
		{name: "serialization failure", err: &pq.Error{Code: CodeSerializationFailure}, expected: true},
		{name: "deadlock", err: &pq.Error{Code: CodeDeadlockDetected}, expected: true},
		{name: "lock timeout", err: &pq.Error{Code: CodeLockNotAvailable}, expected: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: CodeUniqueViolation}), expected: true},
		{name: "undefined table", err: &pq.Error{Code: "42P01"}, expected: false},
		{name: "not a postgres error", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConflict(tt.err))
		})
	}
}

func TestInTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE contact").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.InTx(context.Background(), nil, func(ctx context.Context) error {
			require.NotNil(t, TxFromContext(ctx))
			_, err := db.Conn(ctx).ExecContext(ctx, "UPDATE contact SET x = 1")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := db.InTx(context.Background(), nil, func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.InTx(context.Background(), nil, func(ctx context.Context) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := db.InTx(context.Background(), nil, func(ctx context.Context) error {
			outer := TxFromContext(ctx)
			return db.InTx(ctx, nil, func(ctx context.Context) error {
				assert.Same(t, outer, TxFromContext(ctx))
				return nil
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pool is used outside a transaction", func(t *testing.T) {
		db, _ := newMockDB(t)
		assert.Nil(t, TxFromContext(context.Background()))
		assert.NotNil(t, db.Conn(context.Background()))
	})
}

func TestDescribe(t *testing.T) {
	db, mock := newMockDB(t)
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"version", "database_name", "db_user", "started_at"}).
			AddRow("PostgreSQL 16.2 on x86_64-pc-linux-gnu, compiled by gcc", "fern", "fern", started),
	)

	info, err := Describe(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "fern", info.Database)
	assert.Equal(t, "PostgreSQL 16.2", info.ShortVersion())
	assert.Equal(t, started, info.StartedAt)
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "postgres://****:****@db:5432/fern", MaskURL("postgres://fern:secret@db:5432/fern"))
	assert.Equal(t, "postgres://db:5432/fern", MaskURL("postgres://db:5432/fern"))
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_contact.up.sql",
		"000001_create_contact.down.sql",
		"000003_contact_indexes.up.sql",
		"000002_link_precedence_check.up.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	v, err := latestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = latestVersion(t.TempDir())
	assert.Error(t, err)
}

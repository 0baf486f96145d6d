package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errBusy = errors.New("database is locked (5) (SQLITE_BUSY)")

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	return db
}

func rows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	return n
}

func fastBackoff(t *testing.T) {
	t.Helper()
	orig := busyBackoff
	busyBackoff = time.Millisecond
	t.Cleanup(func() { busyBackoff = orig })
}

func TestWithTx_Commit(t *testing.T) {
	db := openDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('auth.token', 'a')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rows(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('auth.token', 'a')`)
		require.NoError(t, e)
		return errors.New("profile write failed")
	})
	require.EqualError(t, err, "profile write failed")
	assert.Equal(t, 0, rows(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		assert.Equal(t, 0, rows(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('auth.token', 'a')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_RetriesBusy(t *testing.T) {
	fastBackoff(t)
	db := openDB(t)

	calls := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("write: %w", errBusy)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('auth.token', 'a')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, rows(t, db))
}

func TestWithTx_GivesUpWhenAlwaysBusy(t *testing.T) {
	fastBackoff(t)
	db := openDB(t)

	calls := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		calls++
		return errBusy
	})
	require.ErrorIs(t, err, errBusy)
	assert.Equal(t, busyRetries+1, calls)
}

func TestWithTx_OtherErrorsAreNotRetried(t *testing.T) {
	db := openDB(t)

	calls := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		calls++
		return errors.New("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithTx_CancelledWhileBacking(t *testing.T) {
	db := openDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		cancel()
		return errBusy
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithTx_BeginError(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("no such table")))
	assert.True(t, IsBusy(errBusy))
	assert.True(t, IsBusy(fmt.Errorf("wrapped: %w", errors.New("database is locked"))))
}

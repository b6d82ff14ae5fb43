package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInTransaction(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(txCtx context.Context) error {
			executor := GetExecutor(txCtx, db)
			_, err := executor.ExecContext(txCtx, "UPDATE users SET name = $1", "x")
			return err
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := tm.InTransaction(context.Background(), func(txCtx context.Context) error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is reported", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err := tm.InTransaction(context.Background(), func(txCtx context.Context) error {
			t.Fatal("fn should not run")
			return nil
		})
		assert.Error(t, err)
	})
}

func TestGetExecutor(t *testing.T) {
	t.Run("prefers an open transaction", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)

		ctx := context.WithValue(context.Background(), transactionContextKey{}, tx)
		assert.Equal(t, Executor(tx), GetExecutor(ctx, db))
	})

	t.Run("falls back to the shared pool", func(t *testing.T) {
		db, _ := newMockDB(t)
		assert.Equal(t, Executor(db.DB), GetExecutor(context.Background(), db))
	})

	t.Run("released tenant connection is skipped", func(t *testing.T) {
		db, mock := newMockDB(t)

		tenantID := uuid.New()
		mock.ExpectExec("SELECT set_config").
			WithArgs(tenantID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tc, err := db.BindTenant(context.Background(), tenantID)
		require.NoError(t, err)

		mock.ExpectExec("RESET app.tenant_id").WillReturnResult(sqlmock.NewResult(0, 0))
		tc.Release()

		ctx := WithTenantConn(context.Background(), tc)
		assert.Equal(t, Executor(db.DB), GetExecutor(ctx, db),
			"a released handle must not serve queries")
	})
}

func TestBindTenant(t *testing.T) {
	t.Run("binds the tenant setting on a dedicated connection", func(t *testing.T) {
		db, mock := newMockDB(t)

		tenantID := uuid.New()
		mock.ExpectExec("SELECT set_config").
			WithArgs(tenantID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tc, err := db.BindTenant(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, tenantID, tc.TenantID())
		assert.False(t, tc.Released())

		mock.ExpectExec("RESET app.tenant_id").WillReturnResult(sqlmock.NewResult(0, 0))
		tc.Release()
		assert.True(t, tc.Released())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("binding failure returns the connection before erroring", func(t *testing.T) {
		db, mock := newMockDB(t)

		tenantID := uuid.New()
		mock.ExpectExec("SELECT set_config").
			WithArgs(tenantID.String()).
			WillReturnError(errors.New("parameter rejected"))

		_, err := db.BindTenant(context.Background(), tenantID)
		assert.Error(t, err)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		db, mock := newMockDB(t)

		tenantID := uuid.New()
		mock.ExpectExec("SELECT set_config").
			WithArgs(tenantID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tc, err := db.BindTenant(context.Background(), tenantID)
		require.NoError(t, err)

		// Exactly one RESET regardless of how many times Release is called.
		mock.ExpectExec("RESET app.tenant_id").WillReturnResult(sqlmock.NewResult(0, 0))
		tc.Release()
		tc.Release()
		tc.Release()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("released handle setting holds for a bounded grace period", func(t *testing.T) {
		// Release uses a detached timeout so a cancelled request context cannot
		// leave the marker set.
		db, mock := newMockDB(t)

		tenantID := uuid.New()
		mock.ExpectExec("SELECT set_config").
			WithArgs(tenantID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ctx, cancel := context.WithCancel(context.Background())
		tc, err := db.BindTenant(ctx, tenantID)
		require.NoError(t, err)
		cancel()

		mock.ExpectExec("RESET app.tenant_id").WillReturnResult(sqlmock.NewResult(0, 0))

		done := make(chan struct{})
		go func() {
			tc.Release()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("release blocked on a cancelled request context")
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

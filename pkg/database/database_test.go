package database_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockledger/stockledger-backend/pkg/database"
	testkit "github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_SetsLockTimeoutAndCommits(t *testing.T) {
	mockDB := testkit.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.Database()
	db.SetLockTimeout(1500 * time.Millisecond)

	mockDB.ExpectLedgerBegin(1500 * time.Millisecond)
	mockDB.ExpectExec("UPDATE total_stocks").WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, database.InTransaction(ctx))
		_, err := db.Conn(ctx).ExecContext(ctx, "UPDATE total_stocks SET remaining_quantity = 0")
		return err
	})
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	mockDB := testkit.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.Database()
	boom := stderrors.New("boom")

	mockDB.ExpectBegin()
	mockDB.ExpectRollback()

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	mockDB.ExpectationsWereMet(t)
}

func TestTransaction_NestedCallsJoinOuter(t *testing.T) {
	mockDB := testkit.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.Database()

	// one BEGIN and one COMMIT for both levels
	mockDB.ExpectBegin()
	mockDB.ExpectExec("DELETE FROM lots").WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		return db.Transaction(ctx, func(ctx context.Context) error {
			_, err := db.Conn(ctx).ExecContext(ctx, "DELETE FROM lots WHERE id = $1", "lot-1")
			return err
		})
	})
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestTransaction_LockTimeoutFailureRollsBack(t *testing.T) {
	mockDB := testkit.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.Database()
	db.SetLockTimeout(time.Second)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL lock_timeout = '1000ms'").WillReturnError(stderrors.New("connection reset"))
	mockDB.ExpectRollback()

	called := false
	err := db.Transaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	mockDB.ExpectationsWereMet(t)
}

func TestConn_OutsideTransactionUsesPool(t *testing.T) {
	mockDB := testkit.NewMockDB(t)
	defer mockDB.Close()

	db := mockDB.Database()
	assert.False(t, database.InTransaction(context.Background()))
	assert.Equal(t, db.DB, db.Conn(context.Background()))
}

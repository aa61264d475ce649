package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotRepository_DebitNoRowsIsConflict(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("UPDATE lots SET remaining_quantity = remaining_quantity - $2").
		WithArgs("lot-1", 5).
		WillReturnError(sql.ErrNoRows)

	repo := repository.NewLotRepository(mockDB.Database())
	_, err := repo.Debit(context.Background(), "lot-1", 5)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_FindMergeCandidateNone(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mfg := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	exp := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("FOR UPDATE OF l").
		WithArgs("prod-1", mfg, exp, "sup-1").
		WillReturnRows(testutil.MockRows("id"))

	repo := repository.NewLotRepository(mockDB.Database())
	lot, err := repo.FindMergeCandidate(context.Background(), "prod-1", mfg, exp, "sup-1")

	require.NoError(t, err)
	assert.Nil(t, lot)
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_GetForUpdateNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT * FROM total_stocks WHERE product_id = $1 FOR UPDATE").
		WithArgs("prod-1").
		WillReturnRows(testutil.MockRows("id", "product_id"))

	repo := repository.NewStockRepository(mockDB.Database())
	_, err := repo.GetForUpdate(context.Background(), "prod-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestStockRepository_EnsureUsesUpsert(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectExec("ON CONFLICT (product_id) DO NOTHING").
		WithArgs(testutil.AnyUUID{}, "prod-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := repository.NewStockRepository(mockDB.Database())
	require.NoError(t, repo.Ensure(context.Background(), "prod-1"))
	mockDB.ExpectationsWereMet(t)
}

func TestShipmentRepository_GetByIDAttachesAllocations(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	day := time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("SELECT * FROM outbound_transactions WHERE id = $1").
		WithArgs("tx-1").
		WillReturnRows(testutil.MockRows("id", "branch_id", "transaction_date", "invoice_number",
			"branch_in_charge", "remarks", "performed_by", "created_at").
			AddRow("tx-1", "br-1", day, "TR-1", "Ana", nil, nil, day))
	mockDB.ExpectQuery("SELECT * FROM outbound_lines WHERE transaction_id = $1").
		WithArgs("tx-1").
		WillReturnRows(testutil.MockRows("id", "transaction_id", "line_no", "product_id", "qty_requested").
			AddRow("ln-1", "tx-1", 1, "prod-1", 7).
			AddRow("ln-2", "tx-1", 2, "prod-2", 1))
	mockDB.ExpectQuery("FROM outbound_allocations a").
		WithArgs("tx-1").
		WillReturnRows(testutil.MockRows("id", "line_id", "lot_id", "quantity", "expiry_date").
			AddRow("al-1", "ln-1", "lot-a", 5, day).
			AddRow("al-2", "ln-1", "lot-b", 2, day).
			AddRow("al-3", "ln-2", "lot-c", 1, day))

	repo := repository.NewShipmentRepository(mockDB.Database())
	tx, err := repo.GetByID(context.Background(), "tx-1")

	require.NoError(t, err)
	require.Len(t, tx.Lines, 2)
	require.Len(t, tx.Lines[0].Allocations, 2)
	assert.Equal(t, "lot-a", tx.Lines[0].Allocations[0].LotID)
	assert.Equal(t, 2, tx.Lines[0].Allocations[1].Quantity)
	require.Len(t, tx.Lines[1].Allocations, 1)
	mockDB.ExpectationsWereMet(t)
}

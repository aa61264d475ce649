package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stockledger/stockledger-backend/pkg/clock"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
	testkit "github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockLockTimeout = 2 * time.Second

func newMockLedger(t *testing.T, m *metrics.Metrics) (*service.Ledger, *testkit.MockDB) {
	t.Helper()
	mockDB := testkit.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := mockDB.Database()
	db.SetLockTimeout(mockLockTimeout)

	cfg := &config.LedgerConfig{LockTimeout: mockLockTimeout, MaxRetries: 1, Timezone: "UTC"}
	clk := clock.NewFixed(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
	return service.NewLedger(db, nil, clk, cfg, m, logger.Nop()), mockDB
}

func expectDeleteProduct(mockDB *testkit.MockDB) {
	mockDB.ExpectExec("UPDATE products SET is_active = FALSE").
		WithArgs("prod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("ON CONFLICT (product_id) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT * FROM total_stocks WHERE product_id = $1 FOR UPDATE").
		WithArgs("prod-1").
		WillReturnRows(testkit.MockRows("id", "product_id", "total_quantity", "remaining_quantity", "updated_at").
			AddRow("ts-1", "prod-1", 12, 9, time.Now()))
	mockDB.ExpectExec("UPDATE lots SET remaining_quantity = 0").
		WithArgs("prod-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mockDB.ExpectExec("UPDATE total_stocks SET total_quantity = 0").
		WithArgs("prod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestLedger_RetriesDeadlockOnce(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig("stock-service"))
	ledger, mockDB := newMockLedger(t, m)

	mockDB.ExpectLedgerBegin(mockLockTimeout)
	mockDB.ExpectExec("UPDATE products SET is_active = FALSE").
		WithArgs("prod-1").
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mockDB.ExpectRollback()

	mockDB.ExpectLedgerBegin(mockLockTimeout)
	expectDeleteProduct(mockDB)
	mockDB.ExpectCommit()

	err := ledger.DeleteProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransactionRetries.WithLabelValues("stock-service", "delete_product")))
}

func TestLedger_RetriesSpentBecomeConcurrencyConflict(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig("stock-service"))
	ledger, mockDB := newMockLedger(t, m)

	for i := 0; i < 2; i++ {
		mockDB.ExpectLedgerBegin(mockLockTimeout)
		mockDB.ExpectExec("UPDATE products SET is_active = FALSE").
			WithArgs("prod-1").
			WillReturnError(&pq.Error{Code: "55P03", Message: "could not obtain lock on row"})
		mockDB.ExpectRollback()
	}

	err := ledger.DeleteProduct(context.Background(), "prod-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrencyConflict))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONCURRENCY_CONFLICT", appErr.Code)
	mockDB.ExpectationsWereMet(t)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConcurrencyErrors.WithLabelValues("stock-service", "delete_product")))
}

func TestLedger_NonRetryableErrorIsReturnedAsIs(t *testing.T) {
	ledger, mockDB := newMockLedger(t, nil)

	mockDB.ExpectLedgerBegin(mockLockTimeout)
	mockDB.ExpectExec("UPDATE products SET is_active = FALSE").
		WithArgs("prod-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	err := ledger.DeleteProduct(context.Background(), "prod-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestLedger_ValidationHappensBeforeAnyQuery(t *testing.T) {
	ledger, mockDB := newMockLedger(t, nil)
	ctx := context.Background()

	_, err := ledger.Dispose(ctx, &service.DisposeRequest{ProductID: "prod-1", Quantity: 0, Cause: "defective"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ledger.Dispose(ctx, &service.DisposeRequest{ProductID: "prod-1", Quantity: 1, Cause: "stolen"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ledger.Allocate(ctx, "prod-1", -2)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ledger.ShipOut(ctx, &service.ShipmentRequest{
		BranchID:        "br-1",
		TransactionDate: time.Now(),
		InvoiceNumber:   "TR-1",
		BranchInCharge:  "Ana",
		Lines:           []service.ShipmentLine{{ProductID: "prod-1", Quantity: 0}},
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ledger.Receive(ctx, &service.ReceiveRequest{
		SupplierID:    "sup-1",
		PurchaseDate:  time.Now(),
		InvoiceNumber: "INV-1",
		Lots: []service.LotRequest{{
			ProductID:         "prod-1",
			ManufacturingDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
			ExpiryDate:        time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
			Quantity:          3,
		}},
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	mockDB.ExpectationsWereMet(t)
}

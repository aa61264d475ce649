package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRepository_EnsureIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	stocks := repository.NewStockRepository(suite.DB)

	require.NoError(t, stocks.Ensure(ctx, product.ID))
	require.NoError(t, stocks.Ensure(ctx, product.ID))

	var rows int
	require.NoError(t, suite.DB.GetContext(ctx, &rows,
		`SELECT COUNT(*) FROM total_stocks WHERE product_id = $1`, product.ID))
	assert.Equal(t, 1, rows)
}

func TestStockRepository_Adjust(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	stocks := repository.NewStockRepository(suite.DB)

	err := suite.DB.Transaction(ctx, func(ctx context.Context) error {
		ts, err := stocks.EnsureForUpdate(ctx, product.ID)
		require.NoError(t, err)
		assert.Zero(t, ts.TotalQuantity)

		ts, err = stocks.Adjust(ctx, product.ID, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, 10, ts.TotalQuantity)
		assert.Equal(t, 10, ts.RemainingQuantity)

		ts, err = stocks.Adjust(ctx, product.ID, 0, -4)
		require.NoError(t, err)
		assert.Equal(t, 10, ts.TotalQuantity)
		assert.Equal(t, 6, ts.RemainingQuantity)
		return nil
	})
	require.NoError(t, err)

	_, err = stocks.Adjust(ctx, product.ID, 0, -7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict), "negative remaining must be refused")

	ts, err := stocks.GetByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, ts.RemainingQuantity)
}

func TestStockRepository_GetByProductCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	stocks := repository.NewStockRepository(suite.DB)
	products := repository.NewProductRepository(suite.DB)

	require.NoError(t, stocks.Ensure(ctx, product.ID))
	_, err := stocks.Adjust(ctx, product.ID, 3, 3)
	require.NoError(t, err)

	view, err := stocks.GetByProductCode(ctx, product.Code)
	require.NoError(t, err)
	assert.Equal(t, product.ID, view.ProductID)
	assert.Equal(t, product.Name, view.ProductName)
	assert.Equal(t, 3, view.RemainingQuantity)

	require.NoError(t, products.Deactivate(ctx, product.ID))
	_, err = stocks.GetByProductCode(ctx, product.Code)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStockRepository_GetForUpdateMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	stocks := repository.NewStockRepository(suite.DB)

	_, err := stocks.GetForUpdate(ctx, product.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestProductRepository_SearchCodes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	products := repository.NewProductRepository(suite.DB)

	suite.Fixtures.Product(t, ctx, testutil.WithProductCode("SRCH-amox-250"))
	suite.Fixtures.Product(t, ctx, testutil.WithProductCode("SRCH-AMOX-500"))
	suite.Fixtures.Product(t, ctx, testutil.WithProductCode("SRCH-para-500"))

	found, err := products.SearchCodes(ctx, "srch-amox", 10)
	require.NoError(t, err)
	codes := make([]string, 0, len(found))
	for _, p := range found {
		codes = append(codes, p.Code)
	}
	assert.ElementsMatch(t, []string{"SRCH-amox-250", "SRCH-AMOX-500"}, codes)

	found, err = products.SearchCodes(ctx, "SRCH-", 2)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestReceiptRepository_DeleteCascadesToLots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)
	rc, lot := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 3, date(2025, time.January, 1))

	receipts := repository.NewReceiptRepository(suite.DB)
	lots := repository.NewLotRepository(suite.DB)

	require.NoError(t, receipts.Delete(ctx, rc.ID))

	_, err := lots.GetByID(ctx, lot.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = receipts.Delete(ctx, rc.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

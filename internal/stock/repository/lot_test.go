package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotRepository_ListForAllocationOrdersByExpiryThenCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)

	_, late := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 5, date(2026, time.June, 1))
	_, earlyA := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 5, date(2025, time.June, 1))
	_, earlyB := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 5, date(2025, time.June, 1))

	lots := repository.NewLotRepository(suite.DB)
	err := suite.DB.Transaction(ctx, func(ctx context.Context) error {
		got, err := lots.ListForAllocation(ctx, product.ID, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, earlyA.ID, got[0].ID)
		assert.Equal(t, earlyB.ID, got[1].ID)
		assert.Equal(t, late.ID, got[2].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestLotRepository_ListForAllocationExpiredScope(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)

	_, expired := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 4, date(2024, time.March, 1))
	createReceiptWithLot(t, ctx, supplier.ID, product.ID, 4, date(2024, time.March, 2))

	lots := repository.NewLotRepository(suite.DB)
	today := date(2024, time.March, 2)

	got, err := lots.ListForAllocation(ctx, product.ID, &today)
	require.NoError(t, err)
	require.Len(t, got, 1, "a lot expiring today is not yet expired")
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestLotRepository_DebitRefusesOverdraw(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)
	_, lot := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 3, date(2025, time.January, 1))

	lots := repository.NewLotRepository(suite.DB)

	remaining, err := lots.Debit(ctx, lot.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = lots.Debit(ctx, lot.ID, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	reloaded, err := lots.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.RemainingQuantity)
	assert.True(t, reloaded.Depleted())
}

func TestLotRepository_FindMergeCandidate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)
	other := suite.Fixtures.Supplier(t, ctx)
	_, lot := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 3, date(2025, time.January, 1))

	lots := repository.NewLotRepository(suite.DB)

	found, err := lots.FindMergeCandidate(ctx, product.ID, lot.ManufacturingDate, lot.ExpiryDate, supplier.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, lot.ID, found.ID)

	found, err = lots.FindMergeCandidate(ctx, product.ID, lot.ManufacturingDate, lot.ExpiryDate, other.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "lots from another supplier never merge")

	found, err = lots.FindMergeCandidate(ctx, product.ID, lot.ManufacturingDate, date(2025, time.January, 2), supplier.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, lots.AddQuantity(ctx, lot, 7, decimal.RequireFromString("7.50")))
	assert.Equal(t, 10, lot.PurchasedQuantity)
	assert.Equal(t, 10, lot.RemainingQuantity)
	assert.True(t, lot.Total.Equal(decimal.RequireFromString("10.50")))
}

func TestLotRepository_CheckConstraintsMapToAppErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)
	_, lot := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 3, date(2025, time.January, 1))

	lots := repository.NewLotRepository(suite.DB)

	lot.RemainingQuantity = 4
	err := lots.Update(ctx, lot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	lot.PurchasedQuantity = 0
	lot.RemainingQuantity = 0
	err = lots.Update(ctx, lot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestLotRepository_ListInventory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)

	_, expired := createReceiptWithLot(t, ctx, supplier.ID, product.ID, 2, date(2024, time.February, 1))
	createReceiptWithLot(t, ctx, supplier.ID, product.ID, 2, date(2030, time.February, 1))

	lots := repository.NewLotRepository(suite.DB)
	today := date(2024, time.June, 1)

	all, total, err := lots.ListInventory(ctx, repository.InventoryFilter{ProductID: product.ID, Today: today}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, all, 2)
	assert.Equal(t, product.Code, all[0].ProductCode)
	assert.Equal(t, supplier.Name, all[0].SupplierName)

	onlyExpired, total, err := lots.ListInventory(ctx, repository.InventoryFilter{
		ProductID:   product.ID,
		ExpiredOnly: true,
		Today:       today,
	}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, onlyExpired, 1)
	assert.Equal(t, expired.ID, onlyExpired[0].ID)

	tracked, err := lots.ListExpiredWithStock(ctx, today)
	require.NoError(t, err)
	ids := make([]string, 0, len(tracked))
	for _, l := range tracked {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, expired.ID)
}

func TestLotRepository_ZeroByProduct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	product := suite.Fixtures.Product(t, ctx)
	supplier := suite.Fixtures.Supplier(t, ctx)
	createReceiptWithLot(t, ctx, supplier.ID, product.ID, 2, date(2025, time.February, 1))
	createReceiptWithLot(t, ctx, supplier.ID, product.ID, 6, date(2025, time.March, 1))

	lots := repository.NewLotRepository(suite.DB)

	sum, err := lots.SumRemaining(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, sum)

	touched, err := lots.ZeroByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), touched)

	sum, err = lots.SumRemaining(ctx, product.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

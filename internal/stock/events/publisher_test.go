package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/events"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStockEventPublisher_NilIsSafe(t *testing.T) {
	var p *events.StockEventPublisher
	ctx := context.Background()

	assert.NotPanics(t, func() {
		p.PublishProductDepleted(ctx, "prod-1")
		p.PublishLotExpired(ctx, &repository.InventoryLot{})
		p.PublishStockDisposed(ctx, []*repository.Disposition{{ProductID: "prod-1"}}, 0)
	})
}

func TestStockEventPublisher_PublishStockDisposed(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewStockEventPublisher(mock, logger.Nop())
	exp := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	p.PublishStockDisposed(context.Background(), []*repository.Disposition{
		{ProductID: "prod-1", LotID: strPtr("lot-a"), Cause: repository.CauseExpired, Quantity: 5, ExpiryDate: &exp, PerformedBy: strPtr("user-1")},
		{ProductID: "prod-1", LotID: strPtr("lot-b"), Cause: repository.CauseExpired, Quantity: 2, ExpiryDate: &exp, PerformedBy: strPtr("user-1")},
	}, 3)

	published := mock.Events(messaging.EventStockDisposed)
	require.Len(t, published, 1)

	data := published[0].(messaging.StockDisposedEvent)
	assert.Equal(t, "prod-1", data.ProductID)
	assert.Equal(t, 7, data.Quantity)
	assert.Equal(t, 3, data.RemainingQuantity)
	assert.Equal(t, "user-1", data.PerformedBy)
	require.Len(t, data.Lots, 2)
	assert.Equal(t, "lot-b", data.Lots[1].LotID)
	assert.Equal(t, exp, data.Lots[1].ExpiryDate)
}

func TestStockEventPublisher_PublishStockShipped(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewStockEventPublisher(mock, logger.Nop())

	tx := &repository.OutboundTransaction{
		ID:            "tx-1",
		BranchID:      "br-1",
		InvoiceNumber: "TR-9",
		Lines: []*repository.OutboundLine{
			{ProductID: "prod-1", QtyRequested: 7, Allocations: []*repository.OutboundAllocation{
				{LotID: "lot-a", Quantity: 5},
				{LotID: "lot-b", Quantity: 2},
			}},
		},
	}
	p.PublishStockShipped(context.Background(), tx, map[string]int{"prod-1": 8})

	published := mock.Events(messaging.EventStockShipped)
	require.Len(t, published, 1)

	data := published[0].(messaging.StockShippedEvent)
	assert.Equal(t, "tx-1", data.TransactionID)
	require.Len(t, data.Lines, 1)
	assert.Equal(t, 8, data.Lines[0].RemainingQuantity)
	assert.Len(t, data.Lines[0].Lots, 2)
}

func TestStockEventPublisher_PublishStockReceived(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewStockEventPublisher(mock, logger.Nop())

	rc := &repository.Receipt{ID: "rc-1", SupplierID: "sup-1", InvoiceNumber: "INV-1", CreatedBy: strPtr("user-1")}
	p.PublishStockReceived(context.Background(), rc, []events.ReceivedLine{
		{Lot: &repository.Lot{ID: "lot-a", ProductID: "prod-1"}, Quantity: 4},
		{Lot: &repository.Lot{ID: "lot-b", ProductID: "prod-2"}, Quantity: 6, Merged: true},
	})

	published := mock.Events(messaging.EventStockReceived)
	require.Len(t, published, 1)

	data := published[0].(messaging.StockReceivedEvent)
	assert.Equal(t, "sup-1", data.SupplierID)
	require.Len(t, data.Lots, 2)
	assert.False(t, data.Lots[0].Merged)
	assert.True(t, data.Lots[1].Merged)
	assert.Equal(t, 6, data.Lots[1].Quantity)
}

func TestStockEventPublisher_PublishFailureIsLoggedNotReturned(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = messaging.ErrBrokerUnavailable
	p := events.NewStockEventPublisher(mock, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishProductDepleted(context.Background(), "prod-1")
	})
	mock.AssertNoEventsPublished(t)
}

package events

import (
	"context"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
)

// EventPublisher sends one event to the broker
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes stock ledger events. A nil publisher drops
// every event, so the ledger runs without a broker.
type StockEventPublisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(publisher EventPublisher, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// ReceivedLine is one receipt line as it landed in the lot store. Merged
// marks a line added onto an existing lot.
type ReceivedLine struct {
	Lot      *repository.Lot
	Quantity int
	Merged   bool
}

// PublishStockReceived publishes a stock received event
func (p *StockEventPublisher) PublishStockReceived(ctx context.Context, rc *repository.Receipt, lines []ReceivedLine) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		ReceiptID:     rc.ID,
		SupplierID:    rc.SupplierID,
		InvoiceNumber: rc.InvoiceNumber,
		Lots:          make([]messaging.LotReceived, 0, len(lines)),
		PerformedBy:   deref(rc.CreatedBy),
	}
	for _, line := range lines {
		data.Lots = append(data.Lots, messaging.LotReceived{
			LotID:     line.Lot.ID,
			ProductID: line.Lot.ProductID,
			Quantity:  line.Quantity,
			Merged:    line.Merged,
		})
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("receipt_id", rc.ID).Msg("failed to publish stock received event")
	}
}

// PublishStockDisposed publishes one event for the records written by a dispose call
func (p *StockEventPublisher) PublishStockDisposed(ctx context.Context, records []*repository.Disposition, remaining int) {
	if p == nil || len(records) == 0 {
		return
	}

	first := records[0]
	data := messaging.StockDisposedEvent{
		ProductID:         first.ProductID,
		Cause:             first.Cause,
		Lots:              make([]messaging.LotMovement, 0, len(records)),
		RemainingQuantity: remaining,
		PerformedBy:       deref(first.PerformedBy),
	}
	for _, rec := range records {
		data.Quantity += rec.Quantity
		mv := messaging.LotMovement{LotID: deref(rec.LotID), Quantity: rec.Quantity}
		if rec.ExpiryDate != nil {
			mv.ExpiryDate = *rec.ExpiryDate
		}
		data.Lots = append(data.Lots, mv)
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDisposed, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", first.ProductID).Msg("failed to publish stock disposed event")
	}
}

// PublishStockShipped publishes a stock shipped event. remaining holds each
// shipped product's aggregate remaining quantity after the shipment.
func (p *StockEventPublisher) PublishStockShipped(ctx context.Context, tx *repository.OutboundTransaction, remaining map[string]int) {
	if p == nil {
		return
	}

	data := messaging.StockShippedEvent{
		TransactionID: tx.ID,
		BranchID:      tx.BranchID,
		InvoiceNumber: tx.InvoiceNumber,
		Lines:         make([]messaging.ShipmentLineOut, 0, len(tx.Lines)),
		PerformedBy:   deref(tx.PerformedBy),
	}
	for _, line := range tx.Lines {
		out := messaging.ShipmentLineOut{
			ProductID:         line.ProductID,
			Quantity:          line.QtyRequested,
			Lots:              make([]messaging.LotMovement, 0, len(line.Allocations)),
			RemainingQuantity: remaining[line.ProductID],
		}
		for _, a := range line.Allocations {
			out.Lots = append(out.Lots, messaging.LotMovement{
				LotID:      a.LotID,
				Quantity:   a.Quantity,
				ExpiryDate: a.ExpiryDate,
			})
		}
		data.Lines = append(data.Lines, out)
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockShipped, data); err != nil {
		p.logger.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to publish stock shipped event")
	}
}

// PublishLotExpired publishes a lot expired event
func (p *StockEventPublisher) PublishLotExpired(ctx context.Context, lot *repository.InventoryLot) {
	if p == nil {
		return
	}

	data := messaging.LotExpiredEvent{
		LotID:             lot.ID,
		ProductID:         lot.ProductID,
		ProductCode:       lot.ProductCode,
		ExpiryDate:        lot.ExpiryDate,
		RemainingQuantity: lot.RemainingQuantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotExpired, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot expired event")
	}
}

// PublishProductDepleted publishes a product depleted event
func (p *StockEventPublisher) PublishProductDepleted(ctx context.Context, productID string) {
	if p == nil {
		return
	}

	data := messaging.ProductDepletedEvent{ProductID: productID}
	if err := p.publisher.Publish(ctx, messaging.EventProductDepleted, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish product depleted event")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

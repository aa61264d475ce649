package consumers

import (
	"context"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
)

// CatalogStore is the part of the ledger that keeps reference data
type CatalogStore interface {
	UpsertProduct(ctx context.Context, p *repository.Product) error
	UpsertSupplier(ctx context.Context, s *repository.Supplier) error
	UpsertBranch(ctx context.Context, b *repository.Branch) error
	DeleteProduct(ctx context.Context, productID string) error
}

// CatalogEventConsumer keeps the local product, supplier and branch tables
// in step with the catalog
type CatalogEventConsumer struct {
	consumer *messaging.Consumer
}

// NewCatalogEventConsumer creates a new catalog event consumer
func NewCatalogEventConsumer(rmq *messaging.RabbitMQ, store CatalogStore, m *metrics.Metrics, log *logger.Logger) (*CatalogEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.catalog-events", m, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.#"); err != nil {
		return nil, err
	}

	h := NewCatalogHandlers(store, log)
	consumer.RegisterHandler(messaging.EventProductUpserted, h.HandleProductUpserted)
	consumer.RegisterHandler(messaging.EventProductDeleted, h.HandleProductDeleted)
	consumer.RegisterHandler(messaging.EventSupplierUpserted, h.HandleSupplierUpserted)
	consumer.RegisterHandler(messaging.EventBranchUpserted, h.HandleBranchUpserted)

	return &CatalogEventConsumer{consumer: consumer}, nil
}

// Start starts consuming messages
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// CatalogHandlers applies catalog events to the ledger's reference data
type CatalogHandlers struct {
	store  CatalogStore
	logger *logger.Logger
}

// NewCatalogHandlers creates the catalog event handlers
func NewCatalogHandlers(store CatalogStore, log *logger.Logger) *CatalogHandlers {
	return &CatalogHandlers{store: store, logger: log.WithComponent("catalog-consumer")}
}

// HandleProductUpserted stores the product and reactivates it if it was retired
func (h *CatalogHandlers) HandleProductUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.ProductID == "" || data.Code == "" {
		h.logger.Warn().Str("event_id", event.ID).Msg("dropping product event without id or code")
		return nil
	}

	h.logger.Info().
		Str("product_id", data.ProductID).
		Str("code", data.Code).
		Msg("received product upserted event")

	return h.store.UpsertProduct(ctx, &repository.Product{
		ID:       data.ProductID,
		Code:     data.Code,
		Barcode:  data.Barcode,
		Name:     data.Name,
		Category: data.Category,
		Brand:    data.Brand,
		UnitType: data.UnitType,
		IsActive: true,
	})
}

// HandleProductDeleted retires the product and writes off its stock.
// Unknown products are acknowledged so redeliveries are harmless.
func (h *CatalogHandlers) HandleProductDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().Str("product_id", data.ProductID).Msg("received product deleted event")

	err := h.store.DeleteProduct(ctx, data.ProductID)
	if errors.Is(err, errors.ErrNotFound) {
		h.logger.Debug().Str("product_id", data.ProductID).Msg("deleted product was never synced")
		return nil
	}
	return err
}

func (h *CatalogHandlers) HandleSupplierUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.SupplierUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().Str("supplier_id", data.SupplierID).Msg("received supplier upserted event")

	return h.store.UpsertSupplier(ctx, &repository.Supplier{
		ID:            data.SupplierID,
		Name:          data.Name,
		ContactPerson: data.ContactPerson,
		Phone:         data.Phone,
		Address:       data.Address,
	})
}

func (h *CatalogHandlers) HandleBranchUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.BranchUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().Str("branch_id", data.BranchID).Msg("received branch upserted event")

	return h.store.UpsertBranch(ctx, &repository.Branch{
		ID:      data.BranchID,
		Code:    data.Code,
		Name:    data.Name,
		Address: data.Address,
	})
}

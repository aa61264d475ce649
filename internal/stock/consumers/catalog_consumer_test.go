package consumers_test

import (
	"context"
	"testing"

	"github.com/stockledger/stockledger-backend/internal/stock/consumers"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products  []*repository.Product
	suppliers []*repository.Supplier
	branches  []*repository.Branch
	deleted   []string
	deleteErr error
}

func (f *fakeCatalog) UpsertProduct(_ context.Context, p *repository.Product) error {
	f.products = append(f.products, p)
	return nil
}

func (f *fakeCatalog) UpsertSupplier(_ context.Context, s *repository.Supplier) error {
	f.suppliers = append(f.suppliers, s)
	return nil
}

func (f *fakeCatalog) UpsertBranch(_ context.Context, b *repository.Branch) error {
	f.branches = append(f.branches, b)
	return nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, productID string) error {
	f.deleted = append(f.deleted, productID)
	return f.deleteErr
}

func newEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "catalog-service", "corr-1", data)
	require.NoError(t, err)
	return event
}

func TestCatalogHandlers_ProductUpserted(t *testing.T) {
	store := &fakeCatalog{}
	h := consumers.NewCatalogHandlers(store, logger.Nop())
	category := "analgesic"

	err := h.HandleProductUpserted(context.Background(), newEvent(t, messaging.EventProductUpserted, messaging.ProductUpsertedEvent{
		ProductID: "prod-1",
		Code:      "PARA-500",
		Name:      "Paracetamol 500mg",
		Category:  &category,
	}))
	require.NoError(t, err)

	require.Len(t, store.products, 1)
	p := store.products[0]
	assert.Equal(t, "prod-1", p.ID)
	assert.Equal(t, "PARA-500", p.Code)
	assert.Equal(t, "analgesic", *p.Category)
	assert.True(t, p.IsActive)
}

func TestCatalogHandlers_ProductUpsertedWithoutCodeIsDropped(t *testing.T) {
	store := &fakeCatalog{}
	h := consumers.NewCatalogHandlers(store, logger.Nop())

	err := h.HandleProductUpserted(context.Background(), newEvent(t, messaging.EventProductUpserted, messaging.ProductUpsertedEvent{
		ProductID: "prod-1",
	}))
	require.NoError(t, err)
	assert.Empty(t, store.products)
}

func TestCatalogHandlers_ProductDeleted(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		wantErr   bool
	}{
		{name: "deletes product", deleteErr: nil},
		{name: "unknown product is acknowledged", deleteErr: errors.NotFound("product")},
		{name: "storage failure is returned for redelivery", deleteErr: errors.Internal("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeCatalog{deleteErr: tt.deleteErr}
			h := consumers.NewCatalogHandlers(store, logger.Nop())

			err := h.HandleProductDeleted(context.Background(), newEvent(t, messaging.EventProductDeleted, messaging.ProductDeletedEvent{
				ProductID: "prod-9",
			}))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"prod-9"}, store.deleted)
		})
	}
}

func TestCatalogHandlers_SupplierAndBranch(t *testing.T) {
	store := &fakeCatalog{}
	h := consumers.NewCatalogHandlers(store, logger.Nop())
	ctx := context.Background()
	phone := "+63 2 555 0100"

	require.NoError(t, h.HandleSupplierUpserted(ctx, newEvent(t, messaging.EventSupplierUpserted, messaging.SupplierUpsertedEvent{
		SupplierID: "sup-1",
		Name:       "Acme Pharma",
		Phone:      &phone,
	})))
	require.NoError(t, h.HandleBranchUpserted(ctx, newEvent(t, messaging.EventBranchUpserted, messaging.BranchUpsertedEvent{
		BranchID: "br-1",
		Code:     "NORTH",
		Name:     "North Branch",
	})))

	require.Len(t, store.suppliers, 1)
	assert.Equal(t, "Acme Pharma", store.suppliers[0].Name)
	assert.Equal(t, phone, *store.suppliers[0].Phone)
	require.Len(t, store.branches, 1)
	assert.Equal(t, "NORTH", store.branches[0].Code)
}

func TestCatalogHandlers_MalformedPayload(t *testing.T) {
	h := consumers.NewCatalogHandlers(&fakeCatalog{}, logger.Nop())
	event := &messaging.Event{ID: "evt-1", Type: messaging.EventBranchUpserted, Data: []byte(`"not an object"`)}

	assert.Error(t, h.HandleBranchUpserted(context.Background(), event))
}

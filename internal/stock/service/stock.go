package service

import (
	"context"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// CodeSearchLimit caps product code search results
const CodeSearchLimit = 10

// GetAggregateStock returns a product's aggregate. A product that never
// received stock reports zero.
func (l *Ledger) GetAggregateStock(ctx context.Context, productID string) (*repository.TotalStock, error) {
	if _, err := l.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	stock, err := l.stocks.GetByProduct(ctx, productID)
	if errors.Is(err, errors.ErrNotFound) {
		return &repository.TotalStock{ProductID: productID}, nil
	}
	return stock, err
}

// GetAggregateStockByCode looks a product's aggregate up by product code
func (l *Ledger) GetAggregateStockByCode(ctx context.Context, code string) (*repository.TotalStockView, error) {
	view, err := l.stocks.GetByProductCode(ctx, code)
	if !errors.Is(err, errors.ErrNotFound) {
		return view, err
	}

	product, err := l.products.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, errors.NotFound("product")
	}
	return &repository.TotalStockView{
		TotalStock:  repository.TotalStock{ProductID: product.ID},
		ProductCode: product.Code,
		ProductName: product.Name,
	}, nil
}

// ListAggregateStock lists the aggregates of active products
func (l *Ledger) ListAggregateStock(ctx context.Context, limit, offset int) ([]*repository.TotalStockView, int64, error) {
	return l.stocks.List(ctx, limit, offset)
}

// ListInventory lists lots with their product and receipt details. With
// expiredOnly it keeps lots whose expiry date is before today.
func (l *Ledger) ListInventory(ctx context.Context, productID string, expiredOnly bool, limit, offset int) ([]*repository.InventoryLot, int64, error) {
	return l.lots.ListInventory(ctx, repository.InventoryFilter{
		ProductID:   productID,
		ExpiredOnly: expiredOnly,
		Today:       l.Today(),
	}, limit, offset)
}

// ListTrackedExpired lists expired lots that still hold stock
func (l *Ledger) ListTrackedExpired(ctx context.Context) ([]*repository.InventoryLot, error) {
	return l.lots.ListExpiredWithStock(ctx, l.Today())
}

// GetLot gets a lot by ID
func (l *Ledger) GetLot(ctx context.Context, id string) (*repository.Lot, error) {
	return l.lots.GetByID(ctx, id)
}

// GetProduct gets a product by ID
func (l *Ledger) GetProduct(ctx context.Context, id string) (*repository.Product, error) {
	return l.products.GetByID(ctx, id)
}

// ListProducts lists active products
func (l *Ledger) ListProducts(ctx context.Context, limit, offset int) ([]*repository.Product, int64, error) {
	return l.products.List(ctx, limit, offset)
}

// SearchProductCodes finds active products whose code contains q
func (l *Ledger) SearchProductCodes(ctx context.Context, q string) ([]*repository.Product, error) {
	if q == "" {
		return []*repository.Product{}, nil
	}
	return l.products.SearchCodes(ctx, q, CodeSearchLimit)
}

// GetReceipt gets a receipt with the lots it created
func (l *Ledger) GetReceipt(ctx context.Context, id string) (*repository.Receipt, error) {
	rc, err := l.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rc.Lots, err = l.lots.ListByReceipt(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// ListReceipts lists receipt headers, newest first
func (l *Ledger) ListReceipts(ctx context.Context, filter repository.ReceiptFilter, limit, offset int) ([]*repository.Receipt, int64, error) {
	return l.receipts.List(ctx, filter, limit, offset)
}

// ListSuppliers lists suppliers
func (l *Ledger) ListSuppliers(ctx context.Context) ([]*repository.Supplier, error) {
	return l.suppliers.List(ctx)
}

// ListBranches lists branches
func (l *Ledger) ListBranches(ctx context.Context) ([]*repository.Branch, error) {
	return l.branches.List(ctx)
}

// InwardReport lists lots received between from and to, optionally for one supplier
func (l *Ledger) InwardReport(ctx context.Context, from, to time.Time, supplierID string) ([]*repository.InwardRow, error) {
	if to.Before(from) {
		return nil, errors.InvalidRequest("report range ends before it starts")
	}
	return l.reports.Inward(ctx, repository.ReportFilter{From: from, To: to, PartyID: supplierID})
}

// OutwardReport lists shipment lines between from and to, optionally for one branch
func (l *Ledger) OutwardReport(ctx context.Context, from, to time.Time, branchID string) ([]*repository.OutwardRow, error) {
	if to.Before(from) {
		return nil, errors.InvalidRequest("report range ends before it starts")
	}
	return l.reports.Outward(ctx, repository.ReportFilter{From: from, To: to, PartyID: branchID})
}

// ProductSummary totals a product's movements
func (l *Ledger) ProductSummary(ctx context.Context, productID string) (*repository.ProductSummary, error) {
	return l.reports.ProductSummary(ctx, productID)
}

package service

import (
	"context"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
)

// UpsertProduct stores a product definition from the catalog
func (l *Ledger) UpsertProduct(ctx context.Context, p *repository.Product) error {
	return l.products.Upsert(ctx, p)
}

// UpsertSupplier stores a supplier definition from the catalog
func (l *Ledger) UpsertSupplier(ctx context.Context, s *repository.Supplier) error {
	return l.suppliers.Upsert(ctx, s)
}

// UpsertBranch stores a branch definition from the catalog
func (l *Ledger) UpsertBranch(ctx context.Context, b *repository.Branch) error {
	return l.branches.Upsert(ctx, b)
}

// DeleteProduct retires a product. Its lots stay as history but hold no
// stock afterwards, and its aggregate is zeroed to match.
func (l *Ledger) DeleteProduct(ctx context.Context, productID string) error {
	start := time.Now()
	var written int
	err := l.run(ctx, "delete_product", func(ctx context.Context) error {
		if err := l.products.Deactivate(ctx, productID); err != nil {
			return err
		}

		stock, err := l.stocks.EnsureForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		written = stock.RemainingQuantity

		if _, err := l.lots.ZeroByProduct(ctx, productID); err != nil {
			return err
		}
		return l.stocks.Zero(ctx, productID)
	})
	l.observe("delete_product", start, written, err)
	if err != nil {
		return err
	}

	l.logger.Info().Str("product_id", productID).Int("units_written_off", written).Msg("product deleted")
	return nil
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// DisposeRequest removes stock that can no longer be sold
type DisposeRequest struct {
	ProductID   string
	Quantity    int
	Cause       string
	Remarks     *string
	PerformedBy string
}

// DispositionResult holds the records written, one per lot touched
type DispositionResult struct {
	BatchID string                    `json:"batch_id"`
	Records []*repository.Disposition `json:"records"`
	Stock   *repository.TotalStock    `json:"stock"`
}

// Dispose writes off expired or defective stock. Expired disposals draw only
// from lots past their expiry date; defective ones from any lot. Both follow
// FEFO order, and the aggregate total shrinks along with remaining.
func (l *Ledger) Dispose(ctx context.Context, req *DisposeRequest) (*DispositionResult, error) {
	cause := strings.ToLower(strings.TrimSpace(req.Cause))
	scope := ScopeAll
	switch cause {
	case repository.CauseExpired:
		scope = ScopeExpired
	case repository.CauseDefective:
	default:
		return nil, errors.InvalidRequest("cause must be one of: expired, defective")
	}
	if req.ProductID == "" {
		return nil, errors.InvalidRequest("product is required")
	}
	if req.Quantity <= 0 {
		return nil, errors.InvalidRequest("quantity must be greater than zero")
	}

	start := time.Now()
	var result *DispositionResult
	err := l.run(ctx, "dispose_"+cause, func(ctx context.Context) error {
		if _, err := l.products.GetByID(ctx, req.ProductID); err != nil {
			return err
		}
		// nothing was ever received: there is no stock record to dispose from
		if _, err := l.stocks.GetByProduct(ctx, req.ProductID); err != nil {
			return err
		}

		alloc, err := l.allocate(ctx, req.ProductID, req.Quantity, scope)
		if err != nil {
			return err
		}

		result = &DispositionResult{
			BatchID: uuid.New().String(),
			Records: make([]*repository.Disposition, 0, len(alloc.Debits)),
		}
		for _, d := range alloc.Debits {
			lotID := d.LotID
			rec := &repository.Disposition{
				BatchID:     result.BatchID,
				ProductID:   req.ProductID,
				LotID:       &lotID,
				Cause:       cause,
				Quantity:    d.Quantity,
				Remarks:     req.Remarks,
				PerformedBy: optional(req.PerformedBy),
			}
			// only expired write-offs carry the lot's expiry date
			if cause == repository.CauseExpired {
				expiry := d.ExpiryDate
				rec.ExpiryDate = &expiry
			}
			if err := l.dispositions.Create(ctx, rec); err != nil {
				return err
			}
			result.Records = append(result.Records, rec)
		}

		result.Stock, err = l.stocks.Adjust(ctx, req.ProductID, -req.Quantity, 0)
		return err
	})
	l.observe("dispose_"+cause, start, req.Quantity, err)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("product_id", req.ProductID).
		Str("cause", cause).
		Int("quantity", req.Quantity).
		Int("lots", len(result.Records)).
		Int("remaining", result.Stock.RemainingQuantity).
		Msg("stock disposed")

	l.publisher.PublishStockDisposed(ctx, result.Records, result.Stock.RemainingQuantity)
	l.publishDepleted(ctx, result.Stock)
	return result, nil
}

// ListDispositions lists disposition records, most recent first
func (l *Ledger) ListDispositions(ctx context.Context, filter repository.DispositionFilter, limit, offset int) ([]*repository.Disposition, int64, error) {
	return l.dispositions.List(ctx, filter, limit, offset)
}

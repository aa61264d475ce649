package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// ShipmentLine asks for qty units of one product
type ShipmentLine struct {
	ProductID string
	Quantity  int
}

// ShipmentRequest moves stock out to a branch
type ShipmentRequest struct {
	BranchID        string
	TransactionDate time.Time
	InvoiceNumber   string
	BranchInCharge  string
	Remarks         *string
	Lines           []ShipmentLine
	PerformedBy     string
}

func validateShipmentRequest(req *ShipmentRequest) error {
	if req.BranchID == "" {
		return errors.InvalidRequest("branch is required")
	}
	if req.TransactionDate.IsZero() {
		return errors.InvalidRequest("transaction date is required")
	}
	if req.InvoiceNumber == "" {
		return errors.InvalidRequest("transfer invoice number is required")
	}
	if req.BranchInCharge == "" {
		return errors.InvalidRequest("branch in charge is required")
	}
	if len(req.Lines) == 0 {
		return errors.InvalidRequest("a shipment needs at least one line")
	}
	for i, line := range req.Lines {
		if line.ProductID == "" {
			return errors.InvalidRequest(fmt.Sprintf("lines[%d]: product is required", i))
		}
		if line.Quantity <= 0 {
			return errors.InvalidRequest(fmt.Sprintf("lines[%d]: quantity must be greater than zero", i))
		}
	}
	return nil
}

// ShipOut allocates every line from its product's lots in FEFO order and
// records the shipment. If any line cannot be covered the whole shipment is
// refused and nothing changes.
func (l *Ledger) ShipOut(ctx context.Context, req *ShipmentRequest) (*repository.OutboundTransaction, error) {
	if err := validateShipmentRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	units := 0
	for _, line := range req.Lines {
		units += line.Quantity
	}

	// Lines are allocated in product id order so concurrent shipments lock
	// aggregates in the same sequence.
	order := make([]int, len(req.Lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return req.Lines[order[a]].ProductID < req.Lines[order[b]].ProductID
	})

	var (
		tx        *repository.OutboundTransaction
		remaining map[string]*repository.TotalStock
	)
	err := l.run(ctx, "ship_out", func(ctx context.Context) error {
		if _, err := l.branches.GetByID(ctx, req.BranchID); err != nil {
			return err
		}
		for _, line := range req.Lines {
			if _, err := l.products.GetByID(ctx, line.ProductID); err != nil {
				return err
			}
		}

		tx = &repository.OutboundTransaction{
			BranchID:        req.BranchID,
			TransactionDate: req.TransactionDate,
			InvoiceNumber:   req.InvoiceNumber,
			BranchInCharge:  req.BranchInCharge,
			Remarks:         req.Remarks,
			PerformedBy:     optional(req.PerformedBy),
		}
		if err := l.shipments.CreateTransaction(ctx, tx); err != nil {
			return err
		}

		tx.Lines = make([]*repository.OutboundLine, len(req.Lines))
		remaining = make(map[string]*repository.TotalStock)
		for _, i := range order {
			want := req.Lines[i]
			alloc, err := l.allocate(ctx, want.ProductID, want.Quantity, ScopeAll)
			if err != nil {
				return err
			}

			line := &repository.OutboundLine{
				TransactionID: tx.ID,
				LineNo:        i + 1,
				ProductID:     want.ProductID,
				QtyRequested:  want.Quantity,
			}
			if err := l.shipments.CreateLine(ctx, line); err != nil {
				return err
			}
			for _, d := range alloc.Debits {
				a := &repository.OutboundAllocation{
					LineID:     line.ID,
					LotID:      d.LotID,
					Quantity:   d.Quantity,
					ExpiryDate: d.ExpiryDate,
				}
				if err := l.shipments.CreateAllocation(ctx, a); err != nil {
					return err
				}
				line.Allocations = append(line.Allocations, a)
			}

			tx.Lines[i] = line
			remaining[want.ProductID] = alloc.Stock
		}
		return nil
	})
	l.observe("ship_out", start, units, err)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("transaction_id", tx.ID).
		Str("branch_id", req.BranchID).
		Int("lines", len(req.Lines)).
		Int("units", units).
		Msg("stock shipped")

	after := make(map[string]int, len(remaining))
	for productID, stock := range remaining {
		after[productID] = stock.RemainingQuantity
	}
	l.publisher.PublishStockShipped(ctx, tx, after)
	for _, stock := range remaining {
		l.publishDepleted(ctx, stock)
	}
	return tx, nil
}

// GetShipment gets a shipment with its lines and lot allocations
func (l *Ledger) GetShipment(ctx context.Context, id string) (*repository.OutboundTransaction, error) {
	return l.shipments.GetByID(ctx, id)
}

// ListShipments lists shipment headers, newest first
func (l *Ledger) ListShipments(ctx context.Context, filter repository.ShipmentFilter, limit, offset int) ([]*repository.OutboundTransaction, int64, error) {
	return l.shipments.List(ctx, filter, limit, offset)
}

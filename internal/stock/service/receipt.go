package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/events"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// LotRequest is one line of a receipt. ID is set only when updating an
// existing lot.
type LotRequest struct {
	ID                *string
	ProductID         string
	ManufacturingDate time.Time
	ExpiryDate        time.Time
	Quantity          int
	Total             decimal.Decimal
}

// ReceiveRequest describes an inbound delivery
type ReceiveRequest struct {
	SupplierID    string
	PurchaseDate  time.Time
	SupplierDate  *time.Time
	InvoiceNumber string
	Remarks       *string
	Lots          []LotRequest
	PerformedBy   string
}

// ReceivedLot reports where one receipt line landed
type ReceivedLot struct {
	LotID     string `json:"lot_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Merged    bool   `json:"merged"`
}

// ReceiptResult is a committed receipt and the lots its lines landed in.
// A merged line points at a lot that may belong to an earlier receipt.
type ReceiptResult struct {
	Receipt *repository.Receipt `json:"receipt"`
	Lines   []ReceivedLot       `json:"lines"`
}

func validateLotRequest(i int, lr LotRequest) error {
	switch {
	case lr.ProductID == "":
		return errors.InvalidRequest(fmt.Sprintf("lots[%d]: product is required", i))
	case lr.Quantity <= 0:
		return errors.InvalidRequest(fmt.Sprintf("lots[%d]: quantity must be greater than zero", i))
	case lr.ManufacturingDate.IsZero() || lr.ExpiryDate.IsZero():
		return errors.InvalidRequest(fmt.Sprintf("lots[%d]: manufacturing and expiry dates are required", i))
	case lr.ExpiryDate.Before(lr.ManufacturingDate):
		return errors.InvalidRequest(fmt.Sprintf("lots[%d]: expiry date precedes manufacturing date", i))
	case lr.Total.IsNegative():
		return errors.InvalidRequest(fmt.Sprintf("lots[%d]: total must not be negative", i))
	}
	return nil
}

func validateReceiveRequest(req *ReceiveRequest) error {
	if req.SupplierID == "" {
		return errors.InvalidRequest("supplier is required")
	}
	if req.PurchaseDate.IsZero() {
		return errors.InvalidRequest("purchase date is required")
	}
	if req.InvoiceNumber == "" {
		return errors.InvalidRequest("invoice number is required")
	}
	if len(req.Lots) == 0 {
		return errors.InvalidRequest("a receipt needs at least one lot")
	}
	for i, lr := range req.Lots {
		if err := validateLotRequest(i, lr); err != nil {
			return err
		}
	}
	return nil
}

// Receive records a delivery. Each line either merges into an existing lot
// of the same product, dates and supplier or creates a new lot, and the
// product's aggregate grows by the line quantity. All lines commit or none.
func (l *Ledger) Receive(ctx context.Context, req *ReceiveRequest) (*ReceiptResult, error) {
	if err := validateReceiveRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	units := 0
	for _, lr := range req.Lots {
		units += lr.Quantity
	}

	var (
		result *ReceiptResult
		landed []events.ReceivedLine
	)
	err := l.run(ctx, "receive", func(ctx context.Context) error {
		if _, err := l.suppliers.GetByID(ctx, req.SupplierID); err != nil {
			return err
		}

		productIDs := make([]string, 0, len(req.Lots))
		for _, lr := range req.Lots {
			if _, err := l.products.GetActive(ctx, lr.ProductID); err != nil {
				return err
			}
			productIDs = append(productIDs, lr.ProductID)
		}

		rc := &repository.Receipt{
			SupplierID:    req.SupplierID,
			PurchaseDate:  req.PurchaseDate,
			SupplierDate:  req.SupplierDate,
			InvoiceNumber: req.InvoiceNumber,
			Remarks:       req.Remarks,
			CreatedBy:     optional(req.PerformedBy),
		}
		if err := l.receipts.Create(ctx, rc); err != nil {
			return err
		}

		if _, err := l.lockProducts(ctx, productIDs); err != nil {
			return err
		}

		result = &ReceiptResult{Receipt: rc, Lines: make([]ReceivedLot, 0, len(req.Lots))}
		landed = make([]events.ReceivedLine, 0, len(req.Lots))
		for _, lr := range req.Lots {
			line, err := l.receiveLine(ctx, rc, lr)
			if err != nil {
				return err
			}
			landed = append(landed, line)
			result.Lines = append(result.Lines, ReceivedLot{
				LotID:     line.Lot.ID,
				ProductID: line.Lot.ProductID,
				Quantity:  line.Quantity,
				Merged:    line.Merged,
			})
		}

		lots, err := l.lots.ListByReceipt(ctx, rc.ID, false)
		if err != nil {
			return err
		}
		rc.Lots = lots
		return nil
	})
	l.observe("receive", start, units, err)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("receipt_id", result.Receipt.ID).
		Str("supplier_id", req.SupplierID).
		Int("lines", len(req.Lots)).
		Int("units", units).
		Msg("stock received")

	l.publisher.PublishStockReceived(ctx, result.Receipt, landed)
	return result, nil
}

// receiveLine lands one line. The product's aggregate row must already be
// locked by the caller.
func (l *Ledger) receiveLine(ctx context.Context, rc *repository.Receipt, lr LotRequest) (events.ReceivedLine, error) {
	existing, err := l.lots.FindMergeCandidate(ctx, lr.ProductID, lr.ManufacturingDate, lr.ExpiryDate, rc.SupplierID)
	if err != nil {
		return events.ReceivedLine{}, err
	}

	line := events.ReceivedLine{Quantity: lr.Quantity}
	if existing != nil {
		if err := l.lots.AddQuantity(ctx, existing, lr.Quantity, lr.Total); err != nil {
			return line, err
		}
		line.Lot = existing
		line.Merged = true
	} else {
		lot := &repository.Lot{
			ReceiptID:         rc.ID,
			ProductID:         lr.ProductID,
			ManufacturingDate: lr.ManufacturingDate,
			ExpiryDate:        lr.ExpiryDate,
			PurchasedQuantity: lr.Quantity,
			RemainingQuantity: lr.Quantity,
			Total:             lr.Total,
		}
		if err := l.lots.Create(ctx, lot); err != nil {
			return line, err
		}
		line.Lot = lot
	}

	if _, err := l.stocks.Adjust(ctx, lr.ProductID, lr.Quantity, lr.Quantity); err != nil {
		return line, err
	}
	return line, nil
}

// UpdateReceipt rewrites a receipt's header and lines. A line with an id
// changes that lot: its remaining quantity moves by the difference between
// the new and old purchased quantity, floored at zero, and the aggregate
// follows. A line without an id is received as new stock.
func (l *Ledger) UpdateReceipt(ctx context.Context, id string, req *ReceiveRequest) (*repository.Receipt, error) {
	if err := validateReceiveRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		rc     *repository.Receipt
		landed []events.ReceivedLine
	)
	err := l.run(ctx, "update_receipt", func(ctx context.Context) error {
		landed = nil
		var err error
		rc, err = l.receipts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := l.suppliers.GetByID(ctx, req.SupplierID); err != nil {
			return err
		}

		current, err := l.lots.ListByReceipt(ctx, id, false)
		if err != nil {
			return err
		}
		productIDs := make([]string, 0, len(current)+len(req.Lots))
		for _, lot := range current {
			productIDs = append(productIDs, lot.ProductID)
		}
		for _, lr := range req.Lots {
			if lr.ID == nil {
				if _, err := l.products.GetActive(ctx, lr.ProductID); err != nil {
					return err
				}
			}
			productIDs = append(productIDs, lr.ProductID)
		}

		// aggregates before lots, the same order allocations lock in
		if _, err := l.lockProducts(ctx, productIDs); err != nil {
			return err
		}
		current, err = l.lots.ListByReceipt(ctx, id, true)
		if err != nil {
			return err
		}
		byID := make(map[string]*repository.Lot, len(current))
		for _, lot := range current {
			byID[lot.ID] = lot
		}

		rc.SupplierID = req.SupplierID
		rc.PurchaseDate = req.PurchaseDate
		rc.SupplierDate = req.SupplierDate
		rc.InvoiceNumber = req.InvoiceNumber
		rc.Remarks = req.Remarks
		if err := l.receipts.Update(ctx, rc); err != nil {
			return err
		}

		for i, lr := range req.Lots {
			if lr.ID == nil {
				line, err := l.receiveLine(ctx, rc, lr)
				if err != nil {
					return err
				}
				landed = append(landed, line)
				continue
			}

			lot, ok := byID[*lr.ID]
			if !ok {
				return errors.NotFound("lot")
			}
			if lot.ProductID != lr.ProductID {
				return errors.InvalidRequest(fmt.Sprintf("lots[%d]: the product of an existing lot cannot change", i))
			}
			if err := l.updateLot(ctx, lot, lr); err != nil {
				return err
			}
		}

		rc.Lots, err = l.lots.ListByReceipt(ctx, id, false)
		return err
	})
	l.observe("update_receipt", start, 0, err)
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("receipt_id", id).Int("lines", len(req.Lots)).Msg("receipt updated")
	if len(landed) > 0 {
		l.publisher.PublishStockReceived(ctx, rc, landed)
	}
	return rc, nil
}

func (l *Ledger) updateLot(ctx context.Context, lot *repository.Lot, lr LotRequest) error {
	delta := lr.Quantity - lot.PurchasedQuantity
	remaining := lot.RemainingQuantity + delta
	if remaining < 0 {
		remaining = 0
	}
	remainingDelta := remaining - lot.RemainingQuantity

	lot.ManufacturingDate = lr.ManufacturingDate
	lot.ExpiryDate = lr.ExpiryDate
	lot.PurchasedQuantity = lr.Quantity
	lot.RemainingQuantity = remaining
	lot.Total = lr.Total
	if err := l.lots.Update(ctx, lot); err != nil {
		return err
	}

	if delta == 0 && remainingDelta == 0 {
		return nil
	}
	_, err := l.stocks.Adjust(ctx, lot.ProductID, delta, remainingDelta)
	return err
}

// DeleteReceipt removes a receipt and its lots. It is refused with a
// Conflict when any of the lots has already been drawn down.
//
// A merged lot belongs to the receipt that created it. Deleting a later
// receipt whose lines merged leaves those units in stock; deleting the
// creating receipt removes them with the lot.
func (l *Ledger) DeleteReceipt(ctx context.Context, id string) error {
	start := time.Now()
	units := 0
	err := l.run(ctx, "delete_receipt", func(ctx context.Context) error {
		units = 0
		if _, err := l.receipts.GetForUpdate(ctx, id); err != nil {
			return err
		}

		current, err := l.lots.ListByReceipt(ctx, id, false)
		if err != nil {
			return err
		}
		productIDs := make([]string, 0, len(current))
		for _, lot := range current {
			productIDs = append(productIDs, lot.ProductID)
		}
		if _, err := l.lockProducts(ctx, productIDs); err != nil {
			return err
		}

		current, err = l.lots.ListByReceipt(ctx, id, true)
		if err != nil {
			return err
		}
		for _, lot := range current {
			if lot.Depleted() {
				return errors.Conflict("receipt has lots that were already drawn down")
			}
		}
		for _, lot := range current {
			if _, err := l.stocks.Adjust(ctx, lot.ProductID, -lot.PurchasedQuantity, -lot.RemainingQuantity); err != nil {
				return err
			}
			units += lot.PurchasedQuantity
		}
		return l.receipts.Delete(ctx, id)
	})
	l.observe("delete_receipt", start, units, err)
	if err != nil {
		return err
	}

	l.logger.Info().Str("receipt_id", id).Int("units", units).Msg("receipt deleted")
	return nil
}

// DeleteLot removes a single lot under the same rule as DeleteReceipt
func (l *Ledger) DeleteLot(ctx context.Context, id string) error {
	start := time.Now()
	units := 0
	err := l.run(ctx, "delete_lot", func(ctx context.Context) error {
		lot, err := l.lots.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := l.lockProducts(ctx, []string{lot.ProductID}); err != nil {
			return err
		}

		lot, err = l.lots.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if lot.Depleted() {
			return errors.Conflict("lot was already drawn down")
		}

		if _, err := l.stocks.Adjust(ctx, lot.ProductID, -lot.PurchasedQuantity, -lot.RemainingQuantity); err != nil {
			return err
		}
		units = lot.PurchasedQuantity
		return l.lots.Delete(ctx, id)
	})
	l.observe("delete_lot", start, units, err)
	if err != nil {
		return err
	}

	l.logger.Info().Str("lot_id", id).Int("units", units).Msg("lot deleted")
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

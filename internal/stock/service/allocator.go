package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Scope selects which lots an allocation may draw from
type Scope int

const (
	// ScopeAll draws from every lot holding stock
	ScopeAll Scope = iota
	// ScopeExpired draws only from lots whose expiry date is before today
	ScopeExpired
)

func (s Scope) String() string {
	if s == ScopeExpired {
		return "expired"
	}
	return "all"
}

// Debit is the quantity taken from one lot
type Debit struct {
	LotID      string    `json:"lot_id"`
	Quantity   int       `json:"quantity"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// AllocationResult lists the lots debited in FEFO order and the product's
// aggregate after the debit
type AllocationResult struct {
	ProductID string                 `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Debits    []Debit                `json:"debits"`
	Stock     *repository.TotalStock `json:"stock"`
}

// PlanFEFO walks lots in the order given and takes min(remaining, still
// needed) from each until qty is covered. It returns the debits and how much
// of qty the lots could not cover.
func PlanFEFO(lots []*repository.Lot, qty int) ([]Debit, int) {
	needed := qty
	debits := make([]Debit, 0, len(lots))
	for _, lot := range lots {
		if needed == 0 {
			break
		}
		if lot.RemainingQuantity <= 0 {
			continue
		}

		take := lot.RemainingQuantity
		if take > needed {
			take = needed
		}
		debits = append(debits, Debit{LotID: lot.ID, Quantity: take, ExpiryDate: lot.ExpiryDate})
		needed -= take
	}
	return debits, needed
}

// Allocate debits qty units of a product from its lots, earliest expiry first,
// in a transaction of its own
func (l *Ledger) Allocate(ctx context.Context, productID string, qty int) (*AllocationResult, error) {
	if qty <= 0 {
		return nil, errors.InvalidRequest("quantity must be greater than zero")
	}

	start := time.Now()
	var result *AllocationResult
	err := l.run(ctx, "allocate", func(ctx context.Context) error {
		if _, err := l.products.GetByID(ctx, productID); err != nil {
			return err
		}

		var err error
		result, err = l.allocate(ctx, productID, qty, ScopeAll)
		return err
	})
	l.observe("allocate", start, qty, err)
	if err != nil {
		return nil, err
	}

	l.publishDepleted(ctx, result.Stock)
	return result, nil
}

// allocate must run inside a transaction. It validates the request against
// the locked aggregate before touching any lot, so a refused allocation
// mutates nothing.
func (l *Ledger) allocate(ctx context.Context, productID string, qty int, scope Scope) (*AllocationResult, error) {
	stock, err := l.stocks.GetForUpdate(ctx, productID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.InsufficientStock(productID, qty, 0)
	}
	if err != nil {
		return nil, err
	}
	if stock.RemainingQuantity < qty {
		return nil, errors.InsufficientStock(productID, qty, stock.RemainingQuantity)
	}

	var expiredBefore *time.Time
	if scope == ScopeExpired {
		today := l.Today()
		expiredBefore = &today
	}

	lots, err := l.lots.ListForAllocation(ctx, productID, expiredBefore)
	if err != nil {
		return nil, err
	}

	if scope == ScopeExpired {
		available := 0
		for _, lot := range lots {
			available += lot.RemainingQuantity
		}
		if available < qty {
			return nil, errors.InsufficientStock(productID, qty, available)
		}
	}

	debits, shortfall := PlanFEFO(lots, qty)
	if shortfall > 0 {
		l.logger.WithProduct(productID).Error().
			Int("requested", qty).
			Int("aggregate_remaining", stock.RemainingQuantity).
			Int("shortfall", shortfall).
			Msg("lots ran out before a validated allocation was covered")
		return nil, errors.InvariantViolation(fmt.Sprintf("lots of product %s hold less than its aggregate stock", productID))
	}

	for _, d := range debits {
		if _, err := l.lots.Debit(ctx, d.LotID, d.Quantity); err != nil {
			return nil, err
		}
	}

	stock, err = l.stocks.Adjust(ctx, productID, 0, -qty)
	if err != nil {
		return nil, err
	}

	l.logger.WithProduct(productID).Debug().
		Str("scope", scope.String()).
		Int("quantity", qty).
		Int("lots", len(debits)).
		Int("remaining", stock.RemainingQuantity).
		Msg("stock allocated")

	return &AllocationResult{
		ProductID: productID,
		Quantity:  qty,
		Debits:    debits,
		Stock:     stock,
	}, nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

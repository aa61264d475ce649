package service

import (
	"context"
	"fmt"
)

// ExpiryScanner finds expired lots that still hold stock, exports their count
// as a gauge and publishes an event per lot so someone disposes of them
type ExpiryScanner struct {
	ledger *Ledger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(ledger *Ledger) *ExpiryScanner {
	return &ExpiryScanner{ledger: ledger}
}

// Scan runs one pass and returns how many expired lots still hold stock
func (s *ExpiryScanner) Scan(ctx context.Context) (int, error) {
	lots, err := s.ledger.ListTrackedExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan expired lots: %w", err)
	}

	s.ledger.metrics.SetExpiredLots(len(lots))
	for _, lot := range lots {
		s.ledger.publisher.PublishLotExpired(ctx, lot)
	}
	return len(lots), nil
}

package service_test

import (
	"testing"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stretchr/testify/assert"
)

func lotsOf(remaining ...int) []*repository.Lot {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	lots := make([]*repository.Lot, len(remaining))
	for i, r := range remaining {
		lots[i] = &repository.Lot{
			ID:                string(rune('a' + i)),
			ExpiryDate:        base.AddDate(0, i, 0),
			PurchasedQuantity: 10,
			RemainingQuantity: r,
		}
	}
	return lots
}

func TestPlanFEFO(t *testing.T) {
	tests := []struct {
		name      string
		lots      []*repository.Lot
		qty       int
		want      []service.Debit
		shortfall int
	}{
		{
			name: "spans the earliest lots first",
			lots: lotsOf(5, 5, 5),
			qty:  7,
			want: []service.Debit{{LotID: "a", Quantity: 5}, {LotID: "b", Quantity: 2}},
		},
		{
			name: "exact fit stops at the boundary",
			lots: lotsOf(5, 5, 5),
			qty:  5,
			want: []service.Debit{{LotID: "a", Quantity: 5}},
		},
		{
			name: "skips drained lots",
			lots: lotsOf(0, 4, 5),
			qty:  6,
			want: []service.Debit{{LotID: "b", Quantity: 4}, {LotID: "c", Quantity: 2}},
		},
		{
			name:      "reports what it could not cover",
			lots:      lotsOf(2, 1),
			qty:       5,
			want:      []service.Debit{{LotID: "a", Quantity: 2}, {LotID: "b", Quantity: 1}},
			shortfall: 2,
		},
		{
			name:      "no lots",
			lots:      nil,
			qty:       3,
			want:      []service.Debit{},
			shortfall: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			debits, shortfall := service.PlanFEFO(tt.lots, tt.qty)

			assert.Equal(t, tt.shortfall, shortfall)
			got := make([]service.Debit, len(debits))
			for i, d := range debits {
				got[i] = service.Debit{LotID: d.LotID, Quantity: d.Quantity}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanFEFO_DoesNotMutateLots(t *testing.T) {
	lots := lotsOf(5, 5)
	service.PlanFEFO(lots, 7)

	assert.Equal(t, 5, lots[0].RemainingQuantity)
	assert.Equal(t, 5, lots[1].RemainingQuantity)
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "all", service.ScopeAll.String())
	assert.Equal(t, "expired", service.ScopeExpired.String())
}

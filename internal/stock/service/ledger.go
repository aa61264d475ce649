package service

import (
	"context"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/events"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/clock"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
)

// Ledger owns every stock mutation. Each operation runs in one database
// transaction that locks the affected products' aggregate rows before any of
// their lots, so operations on the same product serialize and operations on
// different products never wait on each other.
type Ledger struct {
	db           *database.DB
	products     *repository.ProductRepository
	suppliers    *repository.SupplierRepository
	branches     *repository.BranchRepository
	receipts     *repository.ReceiptRepository
	lots         *repository.LotRepository
	stocks       *repository.StockRepository
	dispositions *repository.DispositionRepository
	shipments    *repository.ShipmentRepository
	reports      *repository.ReportRepository
	publisher    *events.StockEventPublisher
	clock        clock.Clock
	location     *time.Location
	maxRetries   int
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

// NewLedger creates a new ledger over db. publisher and m may be nil.
func NewLedger(
	db *database.DB,
	publisher *events.StockEventPublisher,
	clk clock.Clock,
	cfg *config.LedgerConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *Ledger {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Ledger{
		db:           db,
		products:     repository.NewProductRepository(db),
		suppliers:    repository.NewSupplierRepository(db),
		branches:     repository.NewBranchRepository(db),
		receipts:     repository.NewReceiptRepository(db),
		lots:         repository.NewLotRepository(db),
		stocks:       repository.NewStockRepository(db),
		dispositions: repository.NewDispositionRepository(db),
		shipments:    repository.NewShipmentRepository(db),
		reports:      repository.NewReportRepository(db),
		publisher:    publisher,
		clock:        clk,
		location:     cfg.Location(),
		maxRetries:   cfg.MaxRetries,
		metrics:      m,
		logger:       log.WithComponent("ledger"),
	}
}

// Today is the current calendar date in the ledger's timezone
func (l *Ledger) Today() time.Time {
	return clock.Today(l.clock, l.location)
}

// run executes fn in a transaction, re-running it when PostgreSQL reports a
// deadlock, serialization failure or lock timeout. Once the retries are spent
// the last such failure surfaces as a ConcurrencyConflict.
func (l *Ledger) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			l.metrics.RecordRetry(op)
			l.logger.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Msg("retrying ledger transaction")
		}

		err = l.db.Transaction(ctx, fn)
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	l.metrics.RecordConflict(op)
	l.logger.Error().Err(err).Str("operation", op).Msg("ledger transaction kept losing lock races")
	return errors.ConcurrencyConflict(err)
}

// observe records the outcome of a mutating operation
func (l *Ledger) observe(op string, start time.Time, units int, err error) {
	if errors.Is(err, errors.ErrInsufficientStock) {
		l.metrics.RecordInsufficientStock(op)
	}
	l.metrics.RecordLedgerOperation(op, err == nil, units, time.Since(start))
}

// lockProducts creates (if needed) and locks the aggregate rows of the given
// products in ascending id order
func (l *Ledger) lockProducts(ctx context.Context, productIDs []string) (map[string]*repository.TotalStock, error) {
	locked := make(map[string]*repository.TotalStock, len(productIDs))
	for _, id := range sortedUnique(productIDs) {
		stock, err := l.stocks.EnsureForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = stock
	}
	return locked, nil
}

func (l *Ledger) publishDepleted(ctx context.Context, stocks ...*repository.TotalStock) {
	for _, s := range stocks {
		if s != nil && s.RemainingQuantity == 0 {
			l.publisher.PublishProductDepleted(ctx, s.ProductID)
		}
	}
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/permissions"
)

const dateLayout = "2006-01-02"

// Ledger is the stock ledger as the HTTP layer sees it
type Ledger interface {
	Receive(ctx context.Context, req *service.ReceiveRequest) (*service.ReceiptResult, error)
	UpdateReceipt(ctx context.Context, id string, req *service.ReceiveRequest) (*repository.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error
	GetReceipt(ctx context.Context, id string) (*repository.Receipt, error)
	ListReceipts(ctx context.Context, filter repository.ReceiptFilter, limit, offset int) ([]*repository.Receipt, int64, error)
	GetLot(ctx context.Context, id string) (*repository.Lot, error)
	DeleteLot(ctx context.Context, id string) error

	Dispose(ctx context.Context, req *service.DisposeRequest) (*service.DispositionResult, error)
	ListDispositions(ctx context.Context, filter repository.DispositionFilter, limit, offset int) ([]*repository.Disposition, int64, error)

	ShipOut(ctx context.Context, req *service.ShipmentRequest) (*repository.OutboundTransaction, error)
	GetShipment(ctx context.Context, id string) (*repository.OutboundTransaction, error)
	ListShipments(ctx context.Context, filter repository.ShipmentFilter, limit, offset int) ([]*repository.OutboundTransaction, int64, error)

	GetAggregateStock(ctx context.Context, productID string) (*repository.TotalStock, error)
	GetAggregateStockByCode(ctx context.Context, code string) (*repository.TotalStockView, error)
	ListAggregateStock(ctx context.Context, limit, offset int) ([]*repository.TotalStockView, int64, error)
	ListInventory(ctx context.Context, productID string, expiredOnly bool, limit, offset int) ([]*repository.InventoryLot, int64, error)
	ListTrackedExpired(ctx context.Context) ([]*repository.InventoryLot, error)

	GetProduct(ctx context.Context, id string) (*repository.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*repository.Product, int64, error)
	SearchProductCodes(ctx context.Context, q string) ([]*repository.Product, error)
	ListSuppliers(ctx context.Context) ([]*repository.Supplier, error)
	ListBranches(ctx context.Context) ([]*repository.Branch, error)

	InwardReport(ctx context.Context, from, to time.Time, supplierID string) ([]*repository.InwardRow, error)
	OutwardReport(ctx context.Context, from, to time.Time, branchID string) ([]*repository.OutwardRow, error)
	ProductSummary(ctx context.Context, productID string) (*repository.ProductSummary, error)
}

// Mount registers every stock endpoint on r. Each route checks the caller's
// permissions, so r must already run the auth middleware.
func Mount(r chi.Router, ledger Ledger, log *logger.Logger) {
	receipts := NewReceiptHandler(ledger, log)
	dispositions := NewDispositionHandler(ledger, log)
	shipments := NewShipmentHandler(ledger, log)
	stock := NewStockHandler(ledger, log)
	reports := NewReportHandler(ledger, log)

	read := permissions.Require(permissions.StockRead)

	r.Route("/receipts", func(r chi.Router) {
		r.With(read).Get("/", receipts.List)
		r.With(permissions.Require(permissions.StockReceive)).Post("/", receipts.Create)
		r.With(read).Get("/{id}", receipts.Get)
		r.With(permissions.Require(permissions.StockReceive)).Put("/{id}", receipts.Update)
		r.With(permissions.Require(permissions.StockReceiptsDelete)).Delete("/{id}", receipts.Delete)
	})

	r.Route("/lots", func(r chi.Router) {
		r.With(read).Get("/{id}", receipts.GetLot)
		r.With(permissions.Require(permissions.StockReceiptsDelete)).Delete("/{id}", receipts.DeleteLot)
	})

	r.Route("/dispositions", func(r chi.Router) {
		r.With(read).Get("/", dispositions.List)
		r.With(permissions.Require(permissions.StockDispose)).Post("/", dispositions.Create)
	})

	r.Route("/shipments", func(r chi.Router) {
		r.With(read).Get("/", shipments.List)
		r.With(permissions.Require(permissions.StockShip)).Post("/", shipments.Create)
		r.With(read).Get("/{id}", shipments.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(read)

		r.Get("/stock", stock.ListAggregates)
		r.Get("/stock/code/{code}", stock.GetAggregateByCode)
		r.Get("/stock/{productID}", stock.GetAggregate)

		r.Get("/inventory", stock.ListInventory)
		r.Get("/inventory/expired", stock.ListTrackedExpired)

		r.Get("/products", stock.ListProducts)
		r.Get("/products/search", stock.SearchProductCodes)
		r.Get("/products/{id}", stock.GetProduct)

		r.Get("/suppliers", stock.ListSuppliers)
		r.Get("/branches", stock.ListBranches)
	})

	r.Group(func(r chi.Router) {
		r.Use(permissions.Require(permissions.ReportsRead))

		r.Get("/products/{id}/summary", reports.ProductSummary)
		r.Get("/reports/inward", reports.Inward)
		r.Get("/reports/outward", reports.Outward)
	})
}

// parseDate parses a date that already passed datetime validation
func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func parseOptionalDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseDate(*s)
	return &t
}

// queryDate reads an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errors.Validation(map[string]string{name: "must be a date in the format " + dateLayout})
	}
	return &t, nil
}

// pathID reads a uuid path parameter
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.Validation(map[string]string{name: "must be a valid UUID"})
	}
	return id, nil
}

// queryID reads an optional uuid query parameter used as a filter
func queryID(r *http.Request, name string) (string, error) {
	id := r.URL.Query().Get(name)
	if id == "" {
		return "", nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.Validation(map[string]string{name: "must be a valid UUID"})
	}
	return id, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// StockHandler serves aggregate stock, inventory and reference data lookups
type StockHandler struct {
	ledger Ledger
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(ledger Ledger, log *logger.Logger) *StockHandler {
	return &StockHandler{
		ledger: ledger,
		logger: log,
	}
}

func (h *StockHandler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)

	stocks, total, err := h.ledger.ListAggregateStock(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, stocks, page.Meta(total))
}

// GetAggregate returns a product's total and remaining quantity
func (h *StockHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	stock, err := h.ledger.GetAggregateStock(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

func (h *StockHandler) GetAggregateByCode(w http.ResponseWriter, r *http.Request) {
	stock, err := h.ledger.GetAggregateStockByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

// ListInventory lists lots; expired_only=true keeps the ones past expiry
func (h *StockHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	productID, err := queryID(r, "product_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lots, total, err := h.ledger.ListInventory(r.Context(),
		productID, queryBool(r, "expired_only"), page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, page.Meta(total))
}

func (h *StockHandler) ListTrackedExpired(w http.ResponseWriter, r *http.Request) {
	lots, err := h.ledger.ListTrackedExpired(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

func (h *StockHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)

	products, total, err := h.ledger.ListProducts(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, page.Meta(total))
}

func (h *StockHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	product, err := h.ledger.GetProduct(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// SearchProductCodes returns the codes matching ?q=, for autocompletion
func (h *StockHandler) SearchProductCodes(w http.ResponseWriter, r *http.Request) {
	products, err := h.ledger.SearchProductCodes(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	type match struct {
		ID   string `json:"id"`
		Code string `json:"code"`
		Name string `json:"name"`
	}
	matches := make([]match, len(products))
	for i, p := range products {
		matches[i] = match{ID: p.ID, Code: p.Code, Name: p.Name}
	}

	httputil.JSON(w, http.StatusOK, matches)
}

func (h *StockHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.ledger.ListSuppliers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, suppliers)
}

func (h *StockHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.ledger.ListBranches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, branches)
}

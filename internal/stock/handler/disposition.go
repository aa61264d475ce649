package handler

import (
	"net/http"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// DisposeRequest is the body of a disposition
type DisposeRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Cause     string  `json:"cause" validate:"required,oneof=expired defective"`
	Remarks   *string `json:"remarks,omitempty"`
}

// DispositionHandler handles disposition endpoints
type DispositionHandler struct {
	ledger Ledger
	logger *logger.Logger
}

// NewDispositionHandler creates a new disposition handler
func NewDispositionHandler(ledger Ledger, log *logger.Logger) *DispositionHandler {
	return &DispositionHandler{
		ledger: ledger,
		logger: log,
	}
}

// List lists disposition records, filtered by cause and product
func (h *DispositionHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	productID, err := queryID(r, "product_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	filter := repository.DispositionFilter{
		Cause:     r.URL.Query().Get("cause"),
		ProductID: productID,
	}

	records, total, err := h.ledger.ListDispositions(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, page.Meta(total))
}

// Create writes off expired or defective stock
func (h *DispositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DisposeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.Dispose(r.Context(), &service.DisposeRequest{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Cause:       req.Cause,
		Remarks:     req.Remarks,
		PerformedBy: httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

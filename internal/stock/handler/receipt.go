package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// LotLine is one line of a receipt request. ID is only sent when editing an
// existing lot.
type LotLine struct {
	ID                *string         `json:"id,omitempty" validate:"omitempty,uuid"`
	ProductID         string          `json:"product_id" validate:"required,uuid"`
	ManufacturingDate string          `json:"manufacturing_date" validate:"required,datetime=2006-01-02"`
	ExpiryDate        string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Quantity          int             `json:"quantity" validate:"required,gt=0"`
	Total             decimal.Decimal `json:"total" validate:"gte=0"`
}

// ReceiptRequest is the body of receipt create and update
type ReceiptRequest struct {
	SupplierID    string    `json:"supplier_id" validate:"required,uuid"`
	PurchaseDate  string    `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	SupplierDate  *string   `json:"supplier_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InvoiceNumber string    `json:"invoice_number" validate:"required,max=100"`
	Remarks       *string   `json:"remarks,omitempty"`
	Lots          []LotLine `json:"lots" validate:"required,min=1,dive"`
}

func (req *ReceiptRequest) toService(performedBy string) *service.ReceiveRequest {
	lots := make([]service.LotRequest, len(req.Lots))
	for i, line := range req.Lots {
		lots[i] = service.LotRequest{
			ID:                line.ID,
			ProductID:         line.ProductID,
			ManufacturingDate: parseDate(line.ManufacturingDate),
			ExpiryDate:        parseDate(line.ExpiryDate),
			Quantity:          line.Quantity,
			Total:             line.Total,
		}
	}

	return &service.ReceiveRequest{
		SupplierID:    req.SupplierID,
		PurchaseDate:  parseDate(req.PurchaseDate),
		SupplierDate:  parseOptionalDate(req.SupplierDate),
		InvoiceNumber: req.InvoiceNumber,
		Remarks:       req.Remarks,
		Lots:          lots,
		PerformedBy:   performedBy,
	}
}

// ReceiptHandler handles receipt and lot endpoints
type ReceiptHandler struct {
	ledger Ledger
	logger *logger.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(ledger Ledger, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		ledger: ledger,
		logger: log,
	}
}

// List lists receipts, optionally for one supplier and purchase date range
func (h *ReceiptHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)

	from, err := queryDate(r, "from")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	supplierID, err := queryID(r, "supplier_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filter := repository.ReceiptFilter{
		SupplierID: supplierID,
		From:       from,
		To:         to,
	}
	receipts, total, err := h.ledger.ListReceipts(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, receipts, page.Meta(total))
}

// Get gets a receipt with its lots
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.ledger.GetReceipt(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, receipt)
}

// Create records a delivery
func (h *ReceiptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.Receive(r.Context(), req.toService(httputil.GetUserID(r.Context())))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Update rewrites a receipt's header and lines
func (h *ReceiptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req ReceiptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.ledger.UpdateReceipt(r.Context(), id, req.toService(httputil.GetUserID(r.Context())))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, receipt)
}

// Delete deletes a receipt whose lots are untouched
func (h *ReceiptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.ledger.DeleteReceipt(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("receipt_id", id).Str("user_id", httputil.GetUserID(r.Context())).Msg("receipt deleted")
	httputil.NoContent(w)
}

// GetLot gets a lot by ID
func (h *ReceiptHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.ledger.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// DeleteLot deletes a single untouched lot
func (h *ReceiptHandler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.ledger.DeleteLot(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("lot_id", id).Str("user_id", httputil.GetUserID(r.Context())).Msg("lot deleted")
	httputil.NoContent(w)
}

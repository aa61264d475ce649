package handler

import (
	"net/http"

	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/internal/stock/service"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// ShipmentLineRequest asks for a quantity of one product
type ShipmentLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ShipmentRequest is the body of an outbound transaction
type ShipmentRequest struct {
	BranchID        string                `json:"branch_id" validate:"required,uuid"`
	TransactionDate string                `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	InvoiceNumber   string                `json:"transfer_invoice_number" validate:"required,max=255"`
	BranchInCharge  string                `json:"branch_in_charge" validate:"required,max=255"`
	Remarks         *string               `json:"remarks,omitempty"`
	Lines           []ShipmentLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ShipmentHandler handles outbound transaction endpoints
type ShipmentHandler struct {
	ledger Ledger
	logger *logger.Logger
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(ledger Ledger, log *logger.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		ledger: ledger,
		logger: log,
	}
}

func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
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

	branchID, err := queryID(r, "branch_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filter := repository.ShipmentFilter{
		BranchID: branchID,
		From:     from,
		To:       to,
	}
	shipments, total, err := h.ledger.ListShipments(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, shipments, page.Meta(total))
}

func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	shipment, err := h.ledger.GetShipment(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, shipment)
}

// Create ships stock out to a branch. Every line is filled or none is.
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ShipmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.ShipmentLine, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = service.ShipmentLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	shipment, err := h.ledger.ShipOut(r.Context(), &service.ShipmentRequest{
		BranchID:        req.BranchID,
		TransactionDate: parseDate(req.TransactionDate),
		InvoiceNumber:   req.InvoiceNumber,
		BranchInCharge:  req.BranchInCharge,
		Remarks:         req.Remarks,
		Lines:           lines,
		PerformedBy:     httputil.GetUserID(r.Context()),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, shipment)
}

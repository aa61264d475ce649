package handler

import (
	"net/http"
	"time"

	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// ReportHandler serves movement reports
type ReportHandler struct {
	ledger Ledger
	logger *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(ledger Ledger, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		ledger: ledger,
		logger: log,
	}
}

// Inward reports lots received between ?from and ?to
func (h *ReportHandler) Inward(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	supplierID, err := queryID(r, "supplier_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rows, err := h.ledger.InwardReport(r.Context(), from, to, supplierID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Outward reports shipment lines between ?from and ?to
func (h *ReportHandler) Outward(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	branchID, err := queryID(r, "branch_id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rows, err := h.ledger.OutwardReport(r.Context(), from, to, branchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

func (h *ReportHandler) ProductSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	summary, err := h.ledger.ProductSummary(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

func reportRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil || to == nil {
		return time.Time{}, time.Time{}, errors.Validation(map[string]string{
			"from": "this field is required",
			"to":   "this field is required",
		})
	}
	return *from, *to, nil
}

package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Total     decimal.Decimal `json:"total" validate:"gte=0"`
}

type receiptRequest struct {
	PurchaseDate string        `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	Lots         []lineRequest `json:"lots" validate:"required,min=1,dive"`
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := Validate(receiptRequest{
			PurchaseDate: "2024-01-15",
			Lots:         []lineRequest{{ProductID: "p", Quantity: 3, Total: decimal.NewFromInt(30)}},
		})
		assert.NoError(t, err)
	})

	t.Run("reports nested fields by JSON name", func(t *testing.T) {
		err := Validate(receiptRequest{
			PurchaseDate: "15/01/2024",
			Lots:         []lineRequest{{ProductID: "p", Quantity: 0, Total: decimal.NewFromInt(-1)}},
		})

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Equal(t, "must be a date in the format 2006-01-02", appErr.Details["purchase_date"])
		assert.Equal(t, "must be greater than 0", appErr.Details["lots[0].quantity"])
		assert.Contains(t, appErr.Details, "lots[0].total")
	})

	t.Run("empty lots", func(t *testing.T) {
		err := Validate(receiptRequest{PurchaseDate: "2024-01-15", Lots: []lineRequest{}})

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, appErr.Details, "lots")
	})
}

func TestError(t *testing.T) {
	t.Run("app error keeps status and details", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Error(rr, errors.InsufficientStock("p-1", 12, 10))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
		assert.Equal(t, "10", resp.Error.Details["available"])
	})

	t.Run("plain error is internal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Error(rr, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestParsePage(t *testing.T) {
	p := ParsePage(httptest.NewRequest(http.MethodGet, "/?page=3&per_page=20", nil))
	assert.Equal(t, Page{Number: 3, PerPage: 20}, p)
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 3, p.Meta(41).TotalPages)

	p = ParsePage(httptest.NewRequest(http.MethodGet, "/?page=-1&per_page=1000", nil))
	assert.Equal(t, Page{Number: 1, PerPage: 50}, p)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))
}

package permissions_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/permissions"
	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{name: "nothing required", granted: nil, required: "", want: true},
		{name: "exact", granted: []string{"stock.read"}, required: "stock.read", want: true},
		{name: "full access", granted: []string{"*"}, required: "stock.receipts.delete", want: true},
		{name: "resource wildcard", granted: []string{"stock.*"}, required: "stock.receipts.delete", want: true},
		{name: "wildcard does not cross resources", granted: []string{"stock.*"}, required: "reports.read", want: false},
		{name: "prefix is not a wildcard", granted: []string{"stock"}, required: "stock.read", want: false},
		{name: "similar resource name", granted: []string{"stocks.*"}, required: "stock.read", want: false},
		{name: "none granted", granted: nil, required: "stock.read", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permissions.HasPermission(tt.granted, tt.required))
		})
	}
}

func TestExpandWildcard(t *testing.T) {
	assert.ElementsMatch(t, []string{
		permissions.StockRead,
		permissions.StockReceive,
		permissions.StockDispose,
		permissions.StockShip,
		permissions.StockReceiptsDelete,
	}, permissions.ExpandWildcard("stock.*"))
	assert.Equal(t, permissions.Known, permissions.ExpandWildcard("*"))
	assert.Empty(t, permissions.ExpandWildcard("staff.*"))
}

func TestRequire(t *testing.T) {
	h := permissions.Require(permissions.StockShip, permissions.StockDispose)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	serve := func(perms []string) int {
		req := httptest.NewRequest(http.MethodPost, "/shipments", nil)
		req = req.WithContext(httputil.WithPermissions(req.Context(), perms))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, serve([]string{"stock.dispose"}))
	assert.Equal(t, http.StatusNoContent, serve([]string{"*"}))
	assert.Equal(t, http.StatusForbidden, serve([]string{"stock.read"}))
	assert.Equal(t, http.StatusForbidden, serve(nil))
}

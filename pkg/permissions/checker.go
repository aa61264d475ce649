// Package permissions checks the dotted permission strings carried in access
// tokens against what an endpoint requires.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "stock.*")
//   - "resource.action" - Specific action (e.g., "stock.read")
//   - "resource.subresource.action" - Nested permission (e.g., "stock.receipts.delete")
package permissions

import (
	"net/http"
	"strings"

	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
)

// Stock ledger permissions
const (
	StockRead           = "stock.read"
	StockReceive        = "stock.receive"
	StockDispose        = "stock.dispose"
	StockShip           = "stock.ship"
	StockReceiptsDelete = "stock.receipts.delete"
	ReportsRead         = "reports.read"
)

// Known lists every permission the stock service checks
var Known = []string{
	StockRead,
	StockReceive,
	StockDispose,
	StockShip,
	StockReceiptsDelete,
	ReportsRead,
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "stock.*" matches "stock.read", "stock.receipts.delete", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// ExpandWildcard returns the known permissions a pattern grants
func ExpandWildcard(pattern string) []string {
	var matches []string
	for _, p := range Known {
		if HasPermission([]string{pattern}, p) {
			matches = append(matches, p)
		}
	}
	return matches
}

// Require rejects requests whose caller holds none of the given permissions.
// It must run after the auth middleware.
func Require(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyPermission(httputil.GetPermissions(r.Context()), required) {
				httputil.Error(w, forbidden(required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(required []string) *errors.AppError {
	return errors.Forbidden("missing permission: " + strings.Join(required, " or "))
}

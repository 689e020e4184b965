package shared

import (
	"context"
	"log/slog"
	"net/http"
)

// RoleResolver reports the role of the given account.
type RoleResolver func(ctx context.Context, userID int64) (string, error)

// RequireRole guards a route subtree so only sessions whose cashier holds one
// of the listed roles pass through.
func RequireRole(resolver RoleResolver, logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			role, err := resolver(r.Context(), sess.CashierID)
			if err != nil {
				logger.Error("resolve role", slog.Int64("user_id", sess.CashierID), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if _, ok := allowed[role]; !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// PermissionChecker answers functional permission checks.
// *access.Authorizer satisfies it.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, code string) (bool, error)
}

// DataChecker answers data permission checks.
// *access.Authorizer satisfies it.
type DataChecker interface {
	CanAccess(ctx context.Context, actorID, targetID string) (bool, error)
}

// RequirePermission allows the request only if the principal holds code.
// It responds 401 without a principal, 403 when denied and 503 when the
// check itself fails.
func RequirePermission(checker PermissionChecker, code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := goGuard.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			allowed, err := checker.HasPermission(r.Context(), principal, code)
			if !decide(w, allowed, err) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDataAccess allows the request only if the principal may act on the
// user returned by target. An empty target is rejected with 400.
func RequireDataAccess(checker DataChecker, target func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := goGuard.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			targetID := target(r)
			if targetID == "" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			allowed, err := checker.CanAccess(r.Context(), principal, targetID)
			if !decide(w, allowed, err) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func decide(w http.ResponseWriter, allowed bool, err error) bool {
	switch {
	case err != nil:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return false
	case !allowed:
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	default:
		return true
	}
}

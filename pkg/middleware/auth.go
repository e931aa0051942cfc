package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/seat-reservations/pkg/auth"
	"github.com/diagnosis/seat-reservations/pkg/logger"
)

type claimsKey struct{}

// RequireAdmin accepts a bearer admin token. When roles is non-empty the
// token role must be one of them (superadmin always passes).
func RequireAdmin(secret string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			claims, err := auth.Parse(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !roleAllowed(claims.Role, roles) {
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.AdminIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom returns the admin claims stored by RequireAdmin.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func roleAllowed(role string, roles []string) bool {
	if len(roles) == 0 || role == auth.RoleSuperAdmin {
		return role == auth.RoleAdmin || role == auth.RoleSuperAdmin
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + message + `","error":"` + code + `"}`))
}

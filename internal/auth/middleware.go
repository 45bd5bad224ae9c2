package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gva-control/gvc/internal/audit"
)

type claimsKey struct{}

// ClaimsFromContext extracts verified claims from the request context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// Middleware enforces bearer-token authentication. A nil verifier disables
// enforcement (bench mode).
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates the auth middleware. Pass nil to disable auth.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Require returns middleware demanding the given role. The verified subject
// is stored in the context for audit logging.
func (m *Middleware) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			claims, err := m.verifier.Verify(tokenString)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}
			if !claims.Can(role) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = audit.WithOperator(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result":  "error",
		"code":    code,
		"message": message,
	})
}

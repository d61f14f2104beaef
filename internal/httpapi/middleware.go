package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hedgeledger/core/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string, extra map[string]interface{}) {
	body := map[string]interface{}{"error": reason}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// statusForCategory implements spec §7's single status-code-mapping table
// translating the apperr taxonomy to HTTP responses; no raw DB error ever
// reaches the client.
func statusForCategory(cat apperr.Category) int {
	switch cat {
	case apperr.CategoryAuth:
		return http.StatusUnauthorized
	case apperr.CategoryRateLimit:
		return http.StatusTooManyRequests
	case apperr.CategoryUniquenessConflict, apperr.CategoryDepositMismatch:
		return http.StatusConflict
	case apperr.CategoryPriceUnknown, apperr.CategoryDecode:
		return http.StatusUnprocessableEntity
	case apperr.CategoryTransientRPC:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	cat := apperr.AsCategory(err)
	status := statusForCategory(cat)
	reason := "internal error"
	if status != http.StatusInternalServerError {
		reason = err.Error()
	}
	writeError(w, status, reason, nil)
}

// requireSession verifies the signed cookie and stores the claims in the
// request context; admin routes additionally require IsAdmin (spec §4.K).
func (s *Server) requireSession(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessionFromRequest(s.sessionSecret, r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required", nil)
				return
			}
			if adminOnly && !claims.IsAdmin {
				writeError(w, http.StatusForbidden, "admin privileges required", nil)
				return
			}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromContext(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(sessionContextKey{}).(*SessionClaims)
	return claims
}

package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

// AdminClaims represents the claims we expect from the token validator.
type AdminClaims struct {
	AdminID string
	Scopes  []string
}

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*AdminClaims, error)
}

// RequireAuth returns middleware that validates bearer tokens and populates
// the context with the admin identity. When requiredScope is non-empty the
// token must carry it; missing scope is a 403, everything else a 401.
func RequireAuth(validator TokenValidator, requiredScope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenString == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid authorization header"))
				return
			}

			claims, err := validator.Validate(tokenString)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if requiredScope != "" && !slices.Contains(claims.Scopes, requiredScope) {
				logger.WarnContext(ctx, "forbidden - missing scope",
					"scope", requiredScope,
					"admin_id", claims.AdminID,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
				return
			}

			ctx = requestcontext.WithAdmin(ctx, claims.AdminID, claims.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

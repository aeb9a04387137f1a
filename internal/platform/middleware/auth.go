package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Louguiman/tekra-store-sub002/internal/jwt_token"
	"github.com/Louguiman/tekra-store-sub002/pkg/platform/httputil"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// TokenValidator validates bearer tokens into claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// Authenticate resolves the acting principal from a bearer token when one
// is presented. A request without an Authorization header passes through
// as anonymous: whether anonymous access is acceptable is the access
// guard's decision, not this middleware's. A malformed or expired token,
// however, is always a 401; a bad credential is never downgraded to
// anonymous.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx := r.Context()
			ctx = requestcontext.WithActorID(ctx, claims.UserID)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			ctx = requestcontext.WithSessionID(ctx, claims.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

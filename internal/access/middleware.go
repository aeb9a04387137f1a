package access

import (
	"net/http"

	"github.com/Louguiman/tekra-store-sub002/pkg/platform/httputil"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
	"github.com/Louguiman/tekra-store-sub002/pkg/requestcontext"
)

// Require guards a route subtree with a required-role set. Anonymous
// requests get 401, authenticated-but-insufficient requests get 403 with
// the denial already audited. When auditing the denial itself fails the
// request is refused with 503: an unauditable denial is not served.
func Require(decider *Decider, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := Principal{
				UserID: requestcontext.ActorID(ctx),
				Role:   requestcontext.Role(ctx),
			}

			allowed, err := decider.Decide(ctx, principal, roles, RequestInfo{
				Method:   r.Method,
				Endpoint: r.URL.Path,
			})
			if allowed {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable"))
				return
			}
			if principal.UserID == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
				return
			}
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Insufficient permissions"))
		})
	}
}

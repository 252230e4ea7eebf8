package authz

import (
	"net/http"

	"openstream/auth"
	"openstream/db"
	"openstream/httputil"
	"openstream/logging"
)

// Middleware guards routes with a role check for the signed-in user. It
// must run after auth.AuthMiddleware.
type Middleware struct {
	Enforcer *Enforcer
	DB       *db.CompatDB
}

// Require allows the request through only when the user's roles grant act on obj.
func (m *Middleware) Require(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.ExtractUserID(r)
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			roles, err := RolesOf(r.Context(), m.DB, userID)
			if err != nil && err != ErrUnknownUser {
				logging.Ctx(r.Context()).Error().Err(err).Msg("role lookup failed")
				httputil.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			allowed, err := m.Enforcer.Allowed(roles, obj, act)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("authorization error")
				httputil.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !allowed {
				httputil.WriteError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

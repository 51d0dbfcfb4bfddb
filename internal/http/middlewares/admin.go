package middlewares

import (
	"net/http"

	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
)

// RequireAdmin responde 403 si el token no es de un admin. Debe ir después
// de RequireAuth.
func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := GetClaims(r.Context())
			if c == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !c.IsAdmin {
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

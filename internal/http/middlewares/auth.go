package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	"github.com/tunetrail/tunetrail/internal/jwt"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

func bearer(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[len("bearer "):])
	return raw, raw != ""
}

func challenge(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="`+desc+`"`)
}

// ParseToken valida firma y claims del bearer token y guarda el resultado
// en el contexto aunque esté expirado. Lo usa el refresh.
func ParseToken(issuer *jwt.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				challenge(w, "missing bearer token")
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			v, err := issuer.Validate(raw)
			if err != nil {
				challenge(w, "invalid token")
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithCause(err))
				return
			}
			ctx := WithValidated(r.Context(), v)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.UserID(v.Claims.UserID), logger.SessionID(v.Claims.SessionID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth es ParseToken más el rechazo de tokens expirados.
func RequireAuth(issuer *jwt.Issuer) Middleware {
	parse := ParseToken(issuer)
	return func(next http.Handler) http.Handler {
		return parse(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := GetValidated(r.Context())
			if v.Expired {
				challenge(w, "token expired")
				httperrors.WriteError(w, httperrors.ErrTokenExpired)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), v.Claims)))
		}))
	}
}

// RequireSpotify exige que el token lleve un access token de Spotify.
// Debe ir después de RequireAuth.
func RequireSpotify() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := GetClaims(r.Context())
			if c == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !c.HasSpotify() {
				httperrors.WriteError(w, httperrors.ErrSpotifyNeeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

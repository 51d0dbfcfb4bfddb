package middlewares

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CorrelationHeader viaja en request y response.
const CorrelationHeader = "X-Correlation-ID"

// WithCorrelationID propaga el X-Correlation-ID del cliente o genera uno.
func WithCorrelationID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(CorrelationHeader))
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, id)
			next.ServeHTTP(w, r.WithContext(setCorrelationID(r.Context(), id)))
		})
	}
}

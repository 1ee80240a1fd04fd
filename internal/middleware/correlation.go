package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fakestore-systems/fakestore-api/internal/correlation"
)

// Correlation is a middleware that generates or propagates correlation IDs so
// that all work triggered by one request (logs, events, queue jobs, webhook
// deliveries) can be tied together. It checks for an existing X-Correlation-Id
// header and generates a new UUID if not present. The ID is echoed in the
// response header and stored in the request context.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(correlation.Header)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set(correlation.Header, correlationID)

		ctx := correlation.WithID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

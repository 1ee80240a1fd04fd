package middleware

import (
	"net/http"
	"time"

	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
	"github.com/fakestore-systems/fakestore-api/internal/ratelimit"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Abuse enforces the per-client abuse score: suspicious clients are slowed
// down, abusive ones rejected. The score is raised after the response based
// on its status code and the request's user agent. Guard errors fail open.
func Abuse(guard *ratelimit.AbuseGuard, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			score, err := guard.Score(r.Context(), key)
			if err != nil {
				logger.ErrorContext(r.Context(), "abuse score lookup failed", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			delay, blocked := guard.Penalty(score)
			if blocked {
				metrics.AbuseBlocks.Inc()
				logger.WarnContext(r.Context(), "blocking abusive client", "client", key, "score", score)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"access denied"}`))
				return
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			if delta := ratelimit.ScoreDelta(sw.status, r.UserAgent()); delta > 0 {
				if err := guard.Raise(r.Context(), key, delta); err != nil {
					logger.ErrorContext(r.Context(), "failed to raise abuse score", "client", key, "error", err.Error())
				}
			}
		})
	}
}

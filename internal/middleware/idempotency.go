package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/fakestore-systems/fakestore-api/internal/correlation"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// HeaderIdempotencyKey is the client-supplied dedup token. Requests without
// it bypass idempotency handling entirely.
const HeaderIdempotencyKey = "Idempotency-Key"

// captureWriter tees the handler's response so it can be persisted for
// replay after it has been sent to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency deduplicates mutating requests carrying an Idempotency-Key
// header. The first request with a given (key, method, route) executes
// normally and its response is stored; an identical retransmission replays
// the stored response without re-executing the handler; reusing the key with
// a different body is rejected with 409.
func Idempotency(repo repository.IdempotencyRepository, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])
			route := r.URL.Path

			existing, err := repo.FindIdempotencyRecord(r.Context(), key, r.Method, route)
			if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
				logger.ErrorContext(r.Context(), "idempotency lookup failed", "key", key, "error", err.Error())
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			if existing != nil {
				if existing.RequestHash != requestHash {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					w.Write([]byte(`{"error":"idempotency key reused with a different payload"}`))
					return
				}
				replay(w, existing)
				return
			}

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			// Only successful responses are worth replaying. Persistence must
			// not delay the response already sent to the client; a lost write
			// only weakens dedup for a future retransmission.
			if cw.status >= 200 && cw.status < 300 {
				rec := &models.IdempotencyRecord{
					Key:          key,
					Method:       r.Method,
					Route:        route,
					RequestHash:  requestHash,
					Status:       cw.status,
					ContentType:  cw.Header().Get("Content-Type"),
					ResponseBody: bytes.Clone(cw.body.Bytes()),
				}
				ctx := correlation.WithID(context.Background(), correlation.ID(r.Context()))
				go func() {
					if err := repo.InsertIdempotencyRecord(ctx, rec); err != nil && !errors.Is(err, repository.ErrIdempotencyKeyExists) {
						logger.ErrorContext(ctx, "failed to persist idempotency record", "key", key, "error", err.Error())
					}
				}()
			}
		})
	}
}

func replay(w http.ResponseWriter, rec *models.IdempotencyRecord) {
	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Idempotency-Replayed", "true")
	w.WriteHeader(rec.Status)
	w.Write(rec.ResponseBody)
}

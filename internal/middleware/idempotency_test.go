package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func newIdempotencyHandler(repo repository.IdempotencyRepository, calls *int) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc123"}`))
	})
	return Idempotency(repo, testLogger())(inner)
}

func TestIdempotencyPassThroughWithoutKey(t *testing.T) {
	repo := repository.NewMemoryRepository()
	calls := 0
	handler := newIdempotencyHandler(repo, &calls)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"chair"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	// Without a key every request executes the handler.
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	repo := repository.NewMemoryRepository()
	calls := 0
	handler := newIdempotencyHandler(repo, &calls)

	body := `{"name":"chair","price":10}`

	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(body))
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, calls)

	// Persistence is asynchronous; wait for the record to land.
	require.Eventually(t, func() bool {
		_, err := repo.FindIdempotencyRecord(req.Context(), "key-1", http.MethodPost, "/products")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	req2 := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(body))
	req2.Header.Set(HeaderIdempotencyKey, "key-1")
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req2)

	// Byte-identical replay without re-executing the handler.
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotency-Replayed"))
}

func TestIdempotencyConflictOnDifferentBody(t *testing.T) {
	repo := repository.NewMemoryRepository()
	calls := 0
	handler := newIdempotencyHandler(repo, &calls)

	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"chair"}`))
	req.Header.Set(HeaderIdempotencyKey, "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, 1, calls)

	require.Eventually(t, func() bool {
		_, err := repo.FindIdempotencyRecord(req.Context(), "key-1", http.MethodPost, "/products")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	req2 := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"table"}`))
	req2.Header.Set(HeaderIdempotencyKey, "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, calls, "handler must not execute on conflict")
}

func TestIdempotencyDistinctRoutesDoNotCollide(t *testing.T) {
	repo := repository.NewMemoryRepository()
	calls := 0
	handler := newIdempotencyHandler(repo, &calls)

	body := `{"x":1}`
	for _, route := range []string{"/products", "/orders"} {
		req := httptest.NewRequest(http.MethodPost, route, bytes.NewBufferString(body))
		req.Header.Set(HeaderIdempotencyKey, "shared-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	assert.Equal(t, 2, calls, "same key on different routes deduplicates independently")
}

func TestIdempotencyReplaysOriginalContentType(t *testing.T) {
	repo := repository.NewMemoryRepository()
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("receipt #42"))
	})
	handler := Idempotency(repo, testLogger())(inner)

	req := httptest.NewRequest(http.MethodPost, "/receipts", bytes.NewBufferString(`{"order":"o-1"}`))
	req.Header.Set(HeaderIdempotencyKey, "key-ct")
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	require.Eventually(t, func() bool {
		_, err := repo.FindIdempotencyRecord(req.Context(), "key-ct", http.MethodPost, "/receipts")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	req2 := httptest.NewRequest(http.MethodPost, "/receipts", bytes.NewBufferString(`{"order":"o-1"}`))
	req2.Header.Set(HeaderIdempotencyKey, "key-ct")
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "text/plain; charset=utf-8", second.Header().Get("Content-Type"),
		"replay carries the stored content type, not a hardcoded one")
	assert.Equal(t, "receipt #42", second.Body.String())
}

func TestIdempotencyLeavesBodyReadable(t *testing.T) {
	repo := repository.NewMemoryRepository()
	var received string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = string(b)
		w.WriteHeader(http.StatusOK)
	})
	handler := Idempotency(repo, testLogger())(inner)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{"items":[]}`))
	req.Header.Set(HeaderIdempotencyKey, "key-body")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"items":[]}`, received)
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakestore-systems/fakestore-api/internal/ratelimit"
)

func TestAbuseBlocksOverHardThreshold(t *testing.T) {
	client := setupTestRedis(t)
	guard := ratelimit.NewAbuseGuard(client, 50, 100, time.Millisecond)

	require.NoError(t, guard.Raise(context.Background(), "10.0.0.9", 100))

	handler := Abuse(guard, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAbuseDelaysOverSoftThreshold(t *testing.T) {
	client := setupTestRedis(t)
	delay := 50 * time.Millisecond
	guard := ratelimit.NewAbuseGuard(client, 50, 100, delay)

	require.NoError(t, guard.Raise(context.Background(), "10.0.0.10", 60))

	handler := Abuse(guard, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.10:1234"
	rec := httptest.NewRecorder()

	start := time.Now()
	handler.ServeHTTP(rec, req)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, elapsed, delay, "suspicious client should be slowed down")
}

func TestAbuseRaisesScoreOnSuspiciousResponses(t *testing.T) {
	client := setupTestRedis(t)
	guard := ratelimit.NewAbuseGuard(client, 50, 100, time.Millisecond)

	handler := Abuse(guard, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products/missing", nil)
	req.RemoteAddr = "10.0.0.11:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	score, err := guard.Score(context.Background(), "10.0.0.11")
	require.NoError(t, err)
	assert.Equal(t, int64(2), score)
}

func TestAbuseCleanTrafficKeepsZeroScore(t *testing.T) {
	client := setupTestRedis(t)
	guard := ratelimit.NewAbuseGuard(client, 50, 100, time.Millisecond)

	handler := Abuse(guard, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.0.0.12:1234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	score, err := guard.Score(context.Background(), "10.0.0.12")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestScoreDelta(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		userAgent string
		expected  int64
	}{
		{"unauthorized", 401, "Mozilla/5.0", 10},
		{"not found", 404, "Mozilla/5.0", 2},
		{"rate limited", 429, "Mozilla/5.0", 15},
		{"server error", 500, "Mozilla/5.0", 5},
		{"bot user agent", 200, "python-requests/2.28", 10},
		{"bot plus 401", 401, "scrapy-bot/1.0", 20},
		{"clean", 200, "Mozilla/5.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ratelimit.ScoreDelta(tt.status, tt.userAgent))
		})
	}
}

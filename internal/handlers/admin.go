package handlers

import (
	"net/http"
	"strconv"

	"github.com/fakestore-systems/fakestore-api/internal/queue"
)

// MetricsOverview handles GET /admin/metrics/overview, returning aggregated
// job and webhook outcome counts.
func (h *Handler) MetricsOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	counts, err := h.repo.MetricsOverview(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to aggregate metrics")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// MetricsLatency handles GET /admin/metrics/latency?type=job|webhook.
func (h *Handler) MetricsLatency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	metricType := r.URL.Query().Get("type")
	if metricType != "job" && metricType != "webhook" {
		h.writeError(w, http.StatusBadRequest, "type must be job or webhook")
		return
	}

	avg, err := h.repo.AverageLatency(r.Context(), metricType)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to compute latency")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"type":          metricType,
		"avgDurationMs": avg,
	})
}

// DeadLetters handles GET/DELETE /admin/dlq. GET lists dead-lettered jobs;
// DELETE purges them after operational inspection.
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDeadLetters(w, r)
	case http.MethodDelete:
		h.purgeDeadLetters(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.queue.DeadLetters(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read dead letter queue")
		return
	}
	if entries == nil {
		entries = []queue.DeadLetter{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deadLetters": entries})
}

func (h *Handler) purgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.PurgeDeadLetters(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to purge dead letter queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Package handlers wires the HTTP API to the repositories and the event bus.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/fakestore-systems/fakestore-api/internal/eventbus"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/queue"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// ErrorResponse is the JSON error body returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the store API.
type Handler struct {
	repo   repository.Repository
	bus    *eventbus.Bus
	queue  queue.Queue
	logger *logging.Logger
}

// New creates a Handler instance.
func New(repo repository.Repository, bus *eventbus.Bus, q queue.Queue, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, bus: bus, queue: q, logger: logger}
}

// Health handles GET /health for liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	h.writeError(w, http.StatusMethodNotAllowed, "method is not allowed")
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// publish hands an event to the bus. Handler failures are already logged by
// the bus; the domain mutation has committed, so the request still succeeds.
func (h *Handler) publish(r *http.Request, eventName string, payload map[string]any) {
	if err := h.bus.Publish(r.Context(), eventName, payload); err != nil {
		h.logger.ErrorContext(r.Context(), "event publish reported errors", "event", eventName, "error", err.Error())
	}
}

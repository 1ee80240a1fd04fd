package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// Webhooks handles GET/POST /webhooks.
func (h *Handler) Webhooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWebhooks(w, r)
	case http.MethodPost:
		h.createWebhook(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.repo.ListWebhooks(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}
	h.writeJSON(w, http.StatusOK, webhooks)
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Event == "" {
		h.writeError(w, http.StatusBadRequest, "url and event are required")
		return
	}
	if parsed, err := url.Parse(req.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		h.writeError(w, http.StatusBadRequest, "url must be absolute")
		return
	}

	webhook, err := h.repo.CreateWebhook(r.Context(), req.URL, req.Event)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	// The secret is included only in this response; it is never exposed
	// again.
	h.writeJSON(w, http.StatusCreated, webhook)
}

// WebhookByID handles DELETE /webhooks/{webhookId}.
func (h *Handler) WebhookByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.methodNotAllowed(w, http.MethodDelete)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	if id == "" || strings.ContainsRune(id, '/') {
		h.writeError(w, http.StatusBadRequest, "webhook id must be provided")
		return
	}

	if err := h.repo.DeleteWebhook(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrWebhookNotFound) {
			h.writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

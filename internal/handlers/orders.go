package handlers

import (
	"errors"
	"net/http"

	"github.com/fakestore-systems/fakestore-api/internal/eventbus"
	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// Orders handles GET/POST /orders.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listOrders(w, r)
	case http.MethodPost:
		h.createOrder(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "items are required")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			h.writeError(w, http.StatusBadRequest, "each item requires a productId and a positive quantity")
			return
		}
	}

	order, err := h.repo.CreateOrder(r.Context(), req.Items)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock")
		default:
			h.writeError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	// Items are shaped the way they come back out of the queue's JSON round
	// trip, so in-process consumers see the same payload as queue workers.
	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"productId": item.ProductID,
			"quantity":  item.Quantity,
		})
	}
	h.publish(r, eventbus.OrderCreated, map[string]any{
		"orderId": order.ID,
		"items":   items,
	})

	h.writeJSON(w, http.StatusCreated, order)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fakestore-systems/fakestore-api/internal/eventbus"
	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// Products handles GET/POST /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listProducts(w, r)
	case http.MethodPost:
		h.createProduct(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Price == nil {
		h.writeError(w, http.StatusBadRequest, "name and price are required")
		return
	}

	product, err := h.repo.CreateProduct(r.Context(), req.Name, *req.Price)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.publish(r, eventbus.ProductCreated, map[string]any{
		"productId": product.ID,
		"name":      product.Name,
		"price":     product.Price,
	})

	h.writeJSON(w, http.StatusCreated, product)
}

// ProductByID handles GET /products/{productId}.
func (h *Handler) ProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/products/")
	if id == "" || strings.ContainsRune(id, '/') {
		h.writeError(w, http.StatusBadRequest, "product id must be provided")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

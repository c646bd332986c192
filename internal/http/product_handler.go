package http

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cyberwhale/internal/products"
)

// ProductHandler exposes the storefront catalog endpoints.
type ProductHandler struct {
	service *products.Service
	logger  *slog.Logger
}

// NewProductHandler creates a handler.
func NewProductHandler(service *products.Service, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: service, logger: logger}
}

// List returns catalog products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := products.ListOptions{
		AvailableOnly: r.URL.Query().Get("available") == "true",
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := products.Kind(raw)
		opts.Kind = &kind
	}

	list, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("list products", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": list})
}

// Get returns a single product.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("get product", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/procktails/storefront/internal/domain"
)

type ProductCatalog interface {
	List(ctx context.Context) ([]domain.CatalogEntry, bool, error)
	Get(ctx context.Context, productID string) (domain.CatalogEntry, bool, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
}

func NewProductHandler(catalog ProductCatalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout}
}

type productListResponse struct {
	Products []domain.CatalogEntry `json:"products"`
	// Stale advises the client that the upstream refresh failed and this is
	// the last known batch.
	Stale bool `json:"stale,omitempty"`
}

type productResponse struct {
	Product domain.CatalogEntry `json:"product"`
	Stale   bool                `json:"stale,omitempty"`
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entries, stale, err := h.catalog.List(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, productListResponse{Products: entries, Stale: stale})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// product ids are platform GIDs, clients send them percent-encoded
	productID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "malformed product id")
		return
	}

	entry, stale, err := h.catalog.Get(ctx, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, productResponse{Product: entry, Stale: stale})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/procktails/storefront/internal/actor"
	"github.com/procktails/storefront/internal/domain"
)

type CartService interface {
	Get(ctx context.Context, key domain.ActorKey) (*domain.Cart, error)
	AddLine(ctx context.Context, key domain.ActorKey, line domain.CartLine) (*domain.Cart, error)
	SetQuantity(ctx context.Context, key domain.ActorKey, productID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, key domain.ActorKey, productID string) (*domain.Cart, error)
	Clear(ctx context.Context, key domain.ActorKey) error
	MergeIntoAccount(ctx context.Context, anonymous, account domain.ActorKey) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	catalog ProductCatalog
	timeout time.Duration
}

func NewCartHandler(carts CartService, catalog ProductCatalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	Cart *domain.Cart `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.Get(ctx, actorFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	// the catalog is the price authority, the client only names the product
	entry, stale, err := h.catalog.Get(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	cart, err := h.carts.AddLine(ctx, actorFromContext(r.Context()), domain.CartLine{
		ProductID: entry.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: entry.Price,
		Product:   entry.Snapshot(),
		AddedAt:   time.Now().UTC(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, struct {
		cartResponse
		Stale bool `json:"price_data_stale,omitempty"`
	}{cartResponse{Cart: cart}, stale})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	cart, err := h.carts.SetQuantity(ctx, actorFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id query parameter is required")
		return
	}

	cart, err := h.carts.RemoveLine(ctx, actorFromContext(r.Context()), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := actorFromContext(r.Context())
	if err := h.carts.Clear(ctx, key); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Cart: domain.EmptyCart(key)})
}

// MergeCart reconciles the anonymous cart into the account cart at login.
// The account identity comes from the verified claim, the anonymous session
// token from the cookie or header the browser was using before login.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	account := actorFromContext(r.Context())
	if account.Kind != domain.ActorAccount {
		respondError(w, http.StatusUnauthorized, "unauthorized", "merge requires an authenticated account")
		return
	}

	token := actor.SessionToken(r)
	if token == "" {
		// nothing to reconcile, hand back the account cart
		cart, err := h.carts.Get(ctx, account)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, cartResponse{Cart: cart})
		return
	}

	cart, err := h.carts.MergeIntoAccount(ctx, domain.AnonymousKey(token), account)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

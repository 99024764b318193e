package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/procktails/storefront/internal/actor"
	"github.com/procktails/storefront/internal/checkout"
	"github.com/procktails/storefront/internal/domain"
)

type CheckoutService interface {
	Validate(ctx context.Context, req *domain.CheckoutRequest) (*domain.ValidationResult, error)
	CreateCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, *domain.ValidationResult, error)
}

type OrderReader interface {
	GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error)
	ListByActor(ctx context.Context, actorKey string) ([]*domain.Order, error)
}

type CheckoutHandler struct {
	checkouts CheckoutService
	orders    OrderReader
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts CheckoutService, orders OrderReader, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		orders:    orders,
		timeout:   timeout,
	}
}

func (h *CheckoutHandler) decodeRequest(w http.ResponseWriter, r *http.Request) *domain.CheckoutRequest {
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil
	}
	req.ActorKey = actorFromContext(r.Context())
	if req.CustomerEmail == "" {
		req.CustomerEmail = actor.AccountEmailFromContext(r.Context())
	}
	return &req
}

func (h *CheckoutHandler) ValidateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req := h.decodeRequest(w, r)
	if req == nil {
		return
	}

	result, err := h.checkouts.Validate(ctx, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type createCheckoutResponse struct {
	Checkout   *domain.CheckoutSession  `json:"checkout,omitempty"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
}

func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req := h.decodeRequest(w, r)
	if req == nil {
		return
	}

	session, result, err := h.checkouts.CreateCheckout(ctx, req)
	if errors.Is(err, checkout.ErrValidationFailed) {
		// structured per-line errors let the client resync its cart view
		respondJSON(w, http.StatusConflict, createCheckoutResponse{Validation: result})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, createCheckoutResponse{Checkout: session, Validation: result})
}

func (h *CheckoutHandler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checkoutID := r.URL.Query().Get("checkout_id")
	if checkoutID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "checkout_id query parameter is required")
		return
	}

	order, err := h.orders.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if order.ActorKey != actorFromContext(r.Context()).String() {
		// don't leak whether someone else's checkout exists
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

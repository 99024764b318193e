package http

import (
	"context"
	"net/http"
	"time"

	"github.com/procktails/storefront/internal/domain"
)

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type ordersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListByActor(ctx, actorFromContext(r.Context()).String())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

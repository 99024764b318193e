package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/procktails/storefront/internal/ledger"
)

type NotificationApplier interface {
	Apply(ctx context.Context, n *ledger.OrderNotification) error
}

type WebhookHandler struct {
	ledger  NotificationApplier
	timeout time.Duration
}

func NewWebhookHandler(applier NotificationApplier, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{ledger: applier, timeout: timeout}
}

var webhookEvents = map[string]ledger.EventType{
	"create":    ledger.EventOrderCreated,
	"paid":      ledger.EventOrderPaid,
	"updated":   ledger.EventOrderUpdated,
	"cancelled": ledger.EventOrderCancelled,
}

// HandleOrderEvent ingests one platform order notification. Processing
// failures still answer 200: the ledger transitions are idempotent and a
// retry storm from the platform helps nobody.
func (h *WebhookHandler) HandleOrderEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	event, ok := webhookEvents[chi.URLParam(r, "event")]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown_event", "unknown webhook event")
		return
	}

	var payload ledger.OrderEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	n := payload.ToNotification(event)
	if err := h.ledger.Apply(ctx, n); err != nil {
		log.Printf("[%s] failed to apply %s webhook for order %s: %v",
			getRequestID(r.Context()), event, n.PlatformOrderID, err)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

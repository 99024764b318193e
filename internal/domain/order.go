package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPaid              OrderStatus = "paid"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusRefunded          OrderStatus = "refunded"
	OrderStatusPartiallyRefunded OrderStatus = "partially_refunded"
	OrderStatusCancelled         OrderStatus = "cancelled"
)

// transitions is the forward-only status lattice. Anything not listed here
// (including self-transitions) is a replay and must be absorbed as a no-op.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusCompleted, OrderStatusRefunded, OrderStatusPartiallyRefunded},
}

// CanAdvanceTo reports whether the lattice allows moving from s to next.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourceStatuses returns every status from which the lattice permits
// advancing to target.
func (s OrderStatus) SourceStatuses() []OrderStatus {
	var from []OrderStatus
	for src, targets := range transitions {
		for _, t := range targets {
			if t == s {
				from = append(from, src)
			}
		}
	}
	return from
}

type OrderLine struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is the ledger record of one checkout hand-off. It is created when
// the platform accepts a checkout and mutated only by inbound platform
// notifications, never directly by the client.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	PlatformOrderID string      `json:"platform_order_id,omitempty"`
	CheckoutID      string      `json:"checkout_id"`
	ActorKey        string      `json:"actor_key"`
	Status          OrderStatus `json:"status"`
	TotalAmount     float64     `json:"total_amount"`
	Currency        string      `json:"currency"`
	Lines           []OrderLine `json:"lines"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

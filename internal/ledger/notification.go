package ledger

import (
	"encoding/json"
	"strconv"

	"github.com/procktails/storefront/internal/domain"
)

type EventType string

const (
	EventOrderCreated   EventType = "created"
	EventOrderPaid      EventType = "paid"
	EventOrderUpdated   EventType = "updated"
	EventOrderCancelled EventType = "cancelled"
)

// OrderNotification is one platform order event, normalized from whichever
// transport delivered it.
type OrderNotification struct {
	Event             EventType
	PlatformOrderID   string
	CheckoutID        string
	ActorKey          string
	FinancialStatus   string
	FulfillmentStatus string
	TotalAmount       float64
	Currency          string
	Lines             []domain.OrderLine
}

// TargetStatus derives the ledger status the notification is steering the
// order toward from the platform's financial and fulfillment fields.
func (n *OrderNotification) TargetStatus() domain.OrderStatus {
	switch n.FinancialStatus {
	case "paid":
		if n.FulfillmentStatus == "fulfilled" {
			return domain.OrderStatusCompleted
		}
		return domain.OrderStatusPaid
	case "refunded":
		return domain.OrderStatusRefunded
	case "partially_refunded":
		return domain.OrderStatusPartiallyRefunded
	}
	return domain.OrderStatusPending
}

// OrderEventPayload mirrors the platform's order event JSON. Numeric ids come
// through as json.Number so both number and string encodings decode.
type OrderEventPayload struct {
	ID                json.Number `json:"id"`
	CheckoutID        json.Number `json:"checkout_id"`
	CheckoutToken     string      `json:"checkout_token"`
	FinancialStatus   string      `json:"financial_status"`
	FulfillmentStatus string      `json:"fulfillment_status"`
	TotalPrice        string      `json:"total_price"`
	Currency          string      `json:"currency"`
	Customer          struct {
		ID    json.Number `json:"id"`
		Email string      `json:"email"`
	} `json:"customer"`
	LineItems []struct {
		ProductID json.Number `json:"product_id"`
		VariantID json.Number `json:"variant_id"`
		Title     string      `json:"title"`
		Quantity  int         `json:"quantity"`
		Price     string      `json:"price"`
	} `json:"line_items"`
}

func (p *OrderEventPayload) ToNotification(event EventType) *OrderNotification {
	total, _ := strconv.ParseFloat(p.TotalPrice, 64)

	n := &OrderNotification{
		Event:             event,
		PlatformOrderID:   p.ID.String(),
		FinancialStatus:   p.FinancialStatus,
		FulfillmentStatus: p.FulfillmentStatus,
		TotalAmount:       total,
		Currency:          p.Currency,
	}
	if n.Currency == "" {
		n.Currency = "USD"
	}

	if p.CheckoutToken != "" {
		n.CheckoutID = p.CheckoutToken
	} else if p.CheckoutID.String() != "" {
		n.CheckoutID = p.CheckoutID.String()
	}

	if p.Customer.ID.String() != "" {
		n.ActorKey = domain.AccountKey(p.Customer.ID.String()).String()
	}

	for _, item := range p.LineItems {
		price, _ := strconv.ParseFloat(item.Price, 64)
		productID := item.ProductID.String()
		if productID == "" {
			productID = item.VariantID.String()
		}
		n.Lines = append(n.Lines, domain.OrderLine{
			ProductID: productID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}

	return n
}

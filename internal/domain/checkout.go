package domain

// ProposedLine is one untrusted line item from the client's checkout request.
// Quantity and product id are taken as a claim to verify against the stored
// cart; the client never supplies prices.
type ProposedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	ActorKey      ActorKey       `json:"-"`
	ProposedLines []ProposedLine `json:"items"`
	CustomerEmail string         `json:"customer_email,omitempty"`
}

// LineError describes why one proposed line failed validation, with enough
// detail for the client to resynchronize its local cart view.
type LineError struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

type ValidationResult struct {
	Valid       bool        `json:"is_valid"`
	Errors      []LineError `json:"errors,omitempty"`
	TotalAmount float64     `json:"total_amount"`
	Currency    string      `json:"currency"`
}

// CheckoutSession is the payable session created on the commerce platform
// after validation passes.
type CheckoutSession struct {
	ID  string `json:"checkout_id"`
	URL string `json:"checkout_url"`
}

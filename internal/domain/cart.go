package domain

import (
	"fmt"
	"strings"
	"time"
)

type ActorKind string

const (
	ActorAnonymous ActorKind = "anonymous"
	ActorAccount   ActorKind = "account"
)

// ActorKey is the addressing identity a cart is stored under: a platform
// customer id for authenticated shoppers, a minted session id otherwise.
type ActorKey struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

func AnonymousKey(sessionID string) ActorKey {
	return ActorKey{Kind: ActorAnonymous, ID: sessionID}
}

func AccountKey(customerID string) ActorKey {
	return ActorKey{Kind: ActorAccount, ID: customerID}
}

// String returns the storage key, e.g. "account:8412" or "anonymous:anon_ab12".
func (k ActorKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

func (k ActorKey) IsZero() bool {
	return k.ID == ""
}

// ParseActorKey is the inverse of String. Ledger records persist the key in
// its string form and need it back to address the owning cart.
func ParseActorKey(s string) (ActorKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ActorKey{}, fmt.Errorf("malformed actor key %q", s)
	}
	switch ActorKind(kind) {
	case ActorAnonymous, ActorAccount:
		return ActorKey{Kind: ActorKind(kind), ID: id}, nil
	}
	return ActorKey{}, fmt.Errorf("unknown actor kind %q", kind)
}

// ProductSnapshot is a point-in-time copy of display data captured when the
// line was added, not a live reference into the catalog.
type ProductSnapshot struct {
	Name    string   `bson:"name" json:"name"`
	Badge   string   `bson:"badge" json:"badge,omitempty"`
	Palette []string `bson:"palette" json:"palette,omitempty"`
}

type CartLine struct {
	ProductID string          `bson:"product_id" json:"product_id"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	UnitPrice float64         `bson:"unit_price" json:"unit_price"`
	Product   ProductSnapshot `bson:"product" json:"product"`
	AddedAt   time.Time       `bson:"added_at" json:"added_at"`
}

type Cart struct {
	ActorKey  string     `bson:"_id" json:"actor_key"`
	Kind      ActorKind  `bson:"kind" json:"kind"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// EmptyCart returns the canonical cart for an actor with no stored record.
func EmptyCart(key ActorKey) *Cart {
	now := time.Now()
	return &Cart{
		ActorKey:  key.String(),
		Kind:      key.Kind,
		Lines:     nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) TotalItems() int {
	total := 0
	for i := range c.Lines {
		total += c.Lines[i].Quantity
	}
	return total
}

func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for i := range c.Lines {
		total += c.Lines[i].UnitPrice * float64(c.Lines[i].Quantity)
	}
	return total
}

// MergeLines combines an anonymous cart's lines into an account cart's lines:
// quantities are summed for shared products, anonymous-only lines are
// appended in their original order. The account cart's price snapshot wins
// for shared products.
func MergeLines(account, anonymous []CartLine) []CartLine {
	merged := make([]CartLine, len(account))
	copy(merged, account)

	index := make(map[string]int, len(merged))
	for i := range merged {
		index[merged[i].ProductID] = i
	}

	for _, line := range anonymous {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	return merged
}

package repository

import (
	"context"
	"errors"

	"github.com/procktails/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("line not found in cart")
)

// CartRepository defines the persistence operations the cart service needs.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	Get(ctx context.Context, actorKey string) (*domain.Cart, error)
	Upsert(ctx context.Context, cart *domain.Cart) error
	RemoveLine(ctx context.Context, actorKey, productID string) error
	ClearLines(ctx context.Context, actorKey string) error
	Delete(ctx context.Context, actorKey string) error

	// MergeCarts atomically loads both carts, applies merge against their
	// current state and commits the merged account cart together with the
	// deletion of the anonymous cart. When no anonymous cart exists the call
	// is a no-op and merge is never invoked.
	MergeCarts(ctx context.Context, anonymousKey, accountKey string, merge MergeFunc) error
}

// MergeFunc combines the current account cart (nil when absent) with the
// anonymous cart and returns the cart to persist under the account key.
type MergeFunc func(account, anonymous *domain.Cart) *domain.Cart

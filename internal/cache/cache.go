package cache

import (
	"context"
	"errors"

	"github.com/procktails/storefront/internal/domain"
)

// CartCache is the display cache in front of the cart store. It is never a
// second source of truth: writers invalidate, readers fall through to the
// repository on a miss.
type CartCache interface {
	Get(ctx context.Context, actorKey string) (*domain.Cart, error)
	Set(ctx context.Context, actorKey string, cart *domain.Cart) error
	Delete(ctx context.Context, actorKey string) error
}

var ErrCacheMiss = errors.New("cache miss")

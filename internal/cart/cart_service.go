package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/procktails/storefront/internal/cache"
	"github.com/procktails/storefront/internal/domain"
	"github.com/procktails/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyProductID  = errors.New("product id is required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = repository.ErrLineNotFound
	ErrNotAnonymous    = errors.New("merge source must be an anonymous cart")
	ErrNotAccount      = errors.New("merge target must be an account cart")
)

// Service is the authoritative cart store. Every mutation on a given actor
// key is serialized through a per-key lock so read-modify-write sequences
// cannot lose updates under concurrent requests from the same browser.
type Service struct {
	repo  repository.CartRepository
	cache cache.CartCache
	locks *keyLock
	sfg   singleflight.Group // Prevents cache stampede
}

func NewService(repo repository.CartRepository, cache cache.CartCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		locks: newKeyLock(),
	}
}

// Get returns the actor's cart, an empty cart when none exists. It never
// fails on cache errors: those are logged and the repository is consulted.
func (s *Service) Get(ctx context.Context, key domain.ActorKey) (*domain.Cart, error) {
	// Use singleflight to collapse concurrent cache misses for the same key
	v, err, _ := s.sfg.Do(key.String(), func() (interface{}, error) {
		c, err := s.cache.Get(ctx, key.String())
		if err == nil {
			return c, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		// The fill holds the key lock so no mutation can commit and
		// invalidate the cache between the repository read and the Set; a
		// fill computed from a pre-mutation read would outlive the
		// invalidation for the whole cache TTL.
		s.locks.Lock(key.String())
		defer s.locks.Unlock(key.String())

		c, errGet := s.load(ctx, key)
		if errGet != nil {
			return nil, errGet
		}

		if errSet := s.cache.Set(ctx, key.String(), c); errSet != nil {
			log.Printf("cache set error: %v", errSet)
		}

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddLine adds quantity of a product to the cart, creating the cart lazily.
// At most one line per product: an existing line's quantity is increased and
// its price snapshot refreshed.
func (s *Service) AddLine(ctx context.Context, key domain.ActorKey, line domain.CartLine) (*domain.Cart, error) {
	if line.ProductID == "" {
		return nil, ErrEmptyProductID
	}
	if line.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	c, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now()
	}

	if i := c.Line(line.ProductID); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		c.Lines[i].UnitPrice = line.UnitPrice
		c.Lines[i].Product = line.Product
	} else {
		c.Lines = append(c.Lines, line)
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		log.Printf("repo upsert error: %v", err)
		return nil, err
	}

	s.invalidate(key.String())
	return c, nil
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line;
// a zero/negative update for an absent line is a no-op.
func (s *Service) SetQuantity(ctx context.Context, key domain.ActorKey, productID string, quantity int) (*domain.Cart, error) {
	if productID == "" {
		return nil, ErrEmptyProductID
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	c, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	i := c.Line(productID)
	if i < 0 {
		if quantity <= 0 {
			return c, nil
		}
		return nil, ErrLineNotFound
	}

	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	} else {
		c.Lines[i].Quantity = quantity
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		log.Printf("repo upsert error: %v", err)
		return nil, err
	}

	s.invalidate(key.String())
	return c, nil
}

// RemoveLine drops a product from the cart; removing an absent line is fine.
func (s *Service) RemoveLine(ctx context.Context, key domain.ActorKey, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, ErrEmptyProductID
	}

	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	if err := s.repo.RemoveLine(ctx, key.String(), productID); err != nil {
		log.Printf("repo remove line error: %v", err)
		return nil, err
	}

	s.invalidate(key.String())
	return s.load(ctx, key)
}

// Clear empties the cart's line sequence. Used after a successful checkout.
func (s *Service) Clear(ctx context.Context, key domain.ActorKey) error {
	s.locks.Lock(key.String())
	defer s.locks.Unlock(key.String())

	if err := s.repo.ClearLines(ctx, key.String()); err != nil {
		log.Printf("repo clear cart error: %v", err)
		return err
	}

	s.invalidate(key.String())
	return nil
}

// MergeIntoAccount folds an anonymous cart into an account cart at login:
// quantities sum for shared products, anonymous-only lines are copied in,
// and the anonymous cart is deleted. The merge reads the account cart at
// commit time under both key locks, so a racing mutation cannot be
// overwritten by a stale read.
func (s *Service) MergeIntoAccount(ctx context.Context, anonymous, account domain.ActorKey) (*domain.Cart, error) {
	if anonymous.Kind != domain.ActorAnonymous {
		return nil, ErrNotAnonymous
	}
	if account.Kind != domain.ActorAccount {
		return nil, ErrNotAccount
	}

	anonKey, accountKey := anonymous.String(), account.String()

	s.locks.LockPair(anonKey, accountKey)
	defer s.locks.UnlockPair(anonKey, accountKey)

	err := s.repo.MergeCarts(ctx, anonKey, accountKey, func(acc, anon *domain.Cart) *domain.Cart {
		if acc == nil {
			acc = domain.EmptyCart(account)
		}
		acc.Lines = domain.MergeLines(acc.Lines, anon.Lines)
		return acc
	})
	if err != nil {
		log.Printf("repo merge carts error: %v", err)
		return nil, err
	}

	s.invalidate(anonKey)
	s.invalidate(accountKey)
	return s.load(ctx, account)
}

// load reads the repository directly, mapping a missing record to the
// canonical empty cart.
func (s *Service) load(ctx context.Context, key domain.ActorKey) (*domain.Cart, error) {
	c, err := s.repo.Get(ctx, key.String())
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.EmptyCart(key), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) invalidate(actorKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, actorKey); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

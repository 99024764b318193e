package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/procktails/storefront/internal/domain"
)

type CartClearer interface {
	Clear(ctx context.Context, key domain.ActorKey) error
}

// Service applies platform order notifications to the ledger. Every Apply is
// safe to replay: the conditional status transitions in the repository absorb
// duplicates, and the cart-clear side effect only fires on the transition
// that actually applied.
type Service struct {
	repo  OrderRepository
	carts CartClearer
}

func NewService(repo OrderRepository, carts CartClearer) *Service {
	return &Service{repo: repo, carts: carts}
}

// RecordPending writes the ledger row for a checkout the platform just
// accepted. Called from the checkout hand-off, before any notification for
// the order can arrive.
func (s *Service) RecordPending(ctx context.Context, order *domain.Order) error {
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to record pending order: %w", err)
	}
	return nil
}

func (s *Service) Apply(ctx context.Context, n *OrderNotification) error {
	if n.PlatformOrderID == "" {
		return fmt.Errorf("notification for event %q missing platform order id", n.Event)
	}

	switch n.Event {
	case EventOrderCreated:
		if err := s.register(ctx, n); err != nil {
			return err
		}
		if target := n.TargetStatus(); target != domain.OrderStatusPending {
			return s.advance(ctx, n.PlatformOrderID, target)
		}
		return nil
	case EventOrderPaid:
		return s.advance(ctx, n.PlatformOrderID, domain.OrderStatusPaid)
	case EventOrderUpdated:
		target := n.TargetStatus()
		if target == domain.OrderStatusPending {
			return nil
		}
		return s.advance(ctx, n.PlatformOrderID, target)
	case EventOrderCancelled:
		return s.advance(ctx, n.PlatformOrderID, domain.OrderStatusCancelled)
	}

	log.Printf("ignoring unknown order event %q for order %s", n.Event, n.PlatformOrderID)
	return nil
}

// register binds the platform order id to the pending row that checkout
// hand-off created, or inserts a fresh record for orders placed outside our
// checkout flow.
func (s *Service) register(ctx context.Context, n *OrderNotification) error {
	if n.CheckoutID != "" {
		err := s.repo.AttachPlatformOrder(ctx, n.CheckoutID, n.PlatformOrderID, n.TotalAmount, n.Currency, n.Lines)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("failed to attach platform order %s: %w", n.PlatformOrderID, err)
		}
	}

	if n.ActorKey == "" {
		log.Printf("order %s has no customer and no known checkout, skipping", n.PlatformOrderID)
		return nil
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		PlatformOrderID: n.PlatformOrderID,
		CheckoutID:      n.CheckoutID,
		ActorKey:        n.ActorKey,
		Status:          domain.OrderStatusPending,
		TotalAmount:     n.TotalAmount,
		Currency:        n.Currency,
		Lines:           n.Lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.repo.CreateOrder(ctx, order)
	if errors.Is(err, ErrDuplicateOrder) || errors.Is(err, ErrDuplicateCheckout) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create order %s: %w", n.PlatformOrderID, err)
	}
	return nil
}

// advance walks the order toward target through the status lattice. Reaching
// paid (directly or on the way to completed) clears the owning cart, once.
func (s *Service) advance(ctx context.Context, platformOrderID string, target domain.OrderStatus) error {
	if target == domain.OrderStatusPaid || target == domain.OrderStatusCompleted {
		paid, err := s.repo.Transition(ctx, platformOrderID, domain.OrderStatusPaid, domain.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark order %s paid: %w", platformOrderID, err)
		}
		if paid != nil {
			s.clearCart(ctx, paid)
		}
		if target == domain.OrderStatusPaid {
			return nil
		}
		_, err = s.repo.Transition(ctx, platformOrderID, domain.OrderStatusCompleted, domain.OrderStatusPaid)
		if err != nil {
			return fmt.Errorf("failed to mark order %s completed: %w", platformOrderID, err)
		}
		return nil
	}

	_, err := s.repo.Transition(ctx, platformOrderID, target, target.SourceStatuses()...)
	if err != nil {
		return fmt.Errorf("failed to mark order %s %s: %w", platformOrderID, target, err)
	}
	return nil
}

// clearCart empties the paying actor's cart. Failures are logged, not
// returned: a stuck cart is recoverable, re-delivering the notification to
// retry a ledger write that already applied is not.
func (s *Service) clearCart(ctx context.Context, order *domain.Order) {
	key, err := domain.ParseActorKey(order.ActorKey)
	if err != nil {
		log.Printf("cannot clear cart for order %s: %v", order.PlatformOrderID, err)
		return
	}
	if err := s.carts.Clear(ctx, key); err != nil {
		log.Printf("failed to clear cart %s after payment of order %s: %v", order.ActorKey, order.PlatformOrderID, err)
	}
}

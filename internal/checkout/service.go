package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/procktails/storefront/internal/domain"
)

var (
	ErrNoLines          = errors.New("checkout request has no line items")
	ErrInvalidLine      = errors.New("each line needs a product id and a positive quantity")
	ErrValidationFailed = errors.New("checkout request does not match cart")
)

// CartReader is the slice of the cart store checkout needs. The cart is the
// single source of truth for prices; the client request is only a claim.
type CartReader interface {
	Get(ctx context.Context, key domain.ActorKey) (*domain.Cart, error)
}

type PlatformGateway interface {
	EnsureCustomer(ctx context.Context, email string) error
	CreateCheckout(ctx context.Context, lines []domain.ProposedLine, customerEmail string) (domain.CheckoutSession, error)
}

type OrderRecorder interface {
	RecordPending(ctx context.Context, order *domain.Order) error
}

type Service struct {
	carts    CartReader
	platform PlatformGateway
	orders   OrderRecorder
	currency string
}

func NewService(carts CartReader, platform PlatformGateway, orders OrderRecorder, currency string) *Service {
	return &Service{
		carts:    carts,
		platform: platform,
		orders:   orders,
		currency: currency,
	}
}

// Validate cross-checks a proposed checkout against the actor's stored cart
// and computes the authoritative total from cart-side unit prices. The cart
// itself is never modified.
func (s *Service) Validate(ctx context.Context, req *domain.CheckoutRequest) (*domain.ValidationResult, error) {
	if len(req.ProposedLines) == 0 {
		return nil, ErrNoLines
	}
	for _, pl := range req.ProposedLines {
		if pl.ProductID == "" || pl.Quantity < 1 {
			return nil, ErrInvalidLine
		}
	}

	cart, err := s.carts.Get(ctx, req.ActorKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart for validation: %w", err)
	}

	result, _ := checkLines(cart, req.ProposedLines, s.currency)
	return result, nil
}

// CreateCheckout validates the request, hands the accepted lines off to the
// platform and records a pending ledger order under the returned checkout id.
// On a failed validation the result carries the per-line errors and err is
// ErrValidationFailed; nothing is created upstream.
func (s *Service) CreateCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, *domain.ValidationResult, error) {
	if len(req.ProposedLines) == 0 {
		return nil, nil, ErrNoLines
	}
	for _, pl := range req.ProposedLines {
		if pl.ProductID == "" || pl.Quantity < 1 {
			return nil, nil, ErrInvalidLine
		}
	}

	cart, err := s.carts.Get(ctx, req.ActorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart for validation: %w", err)
	}

	result, orderLines := checkLines(cart, req.ProposedLines, s.currency)
	if !result.Valid {
		return nil, result, ErrValidationFailed
	}

	if req.CustomerEmail != "" {
		// best effort: an unattributed checkout still collects the email
		// on the platform's payment page
		if err := s.platform.EnsureCustomer(ctx, req.CustomerEmail); err != nil {
			log.Printf("customer directory error for %s: %v", req.CustomerEmail, err)
		}
	}

	session, err := s.platform.CreateCheckout(ctx, req.ProposedLines, req.CustomerEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("platform checkout creation failed: %w", err)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:          uuid.New(),
		CheckoutID:  session.ID,
		ActorKey:    req.ActorKey.String(),
		Status:      domain.OrderStatusPending,
		TotalAmount: result.TotalAmount,
		Currency:    result.Currency,
		Lines:       orderLines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.RecordPending(ctx, order); err != nil {
		// the payable session already exists upstream, losing its ledger
		// record is worse than failing the request
		return nil, result, fmt.Errorf("failed to record pending order for checkout %s: %w", session.ID, err)
	}

	return &session, result, nil
}

// checkLines walks the proposed lines against the cart. It returns the
// verdict plus the ledger lines priced from the cart, which are only
// meaningful when the verdict is valid.
func checkLines(cart *domain.Cart, proposed []domain.ProposedLine, currency string) (*domain.ValidationResult, []domain.OrderLine) {
	result := &domain.ValidationResult{Currency: currency}
	lines := make([]domain.OrderLine, 0, len(proposed))

	for _, pl := range proposed {
		idx := cart.Line(pl.ProductID)
		if idx < 0 {
			result.Errors = append(result.Errors, domain.LineError{
				ProductID: pl.ProductID,
				Reason:    "line not found in cart",
			})
			continue
		}

		cl := cart.Lines[idx]
		if cl.Quantity < pl.Quantity {
			name := cl.Product.Name
			if name == "" {
				name = pl.ProductID
			}
			result.Errors = append(result.Errors, domain.LineError{
				ProductID: pl.ProductID,
				Reason:    fmt.Sprintf("requested quantity %d for %s but cart holds %d", pl.Quantity, name, cl.Quantity),
			})
			continue
		}

		result.TotalAmount += cl.UnitPrice * float64(pl.Quantity)
		lines = append(lines, domain.OrderLine{
			ProductID: pl.ProductID,
			Title:     cl.Product.Name,
			Quantity:  pl.Quantity,
			UnitPrice: cl.UnitPrice,
		})
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		result.TotalAmount = 0
	}
	return result, lines
}

package ledger

import (
	"context"
	"errors"

	"github.com/procktails/storefront/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
	ErrDuplicateOrder    = errors.New("order with this platform id already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error)
	GetByPlatformOrderID(ctx context.Context, platformOrderID string) (*domain.Order, error)
	ListByActor(ctx context.Context, actorKey string) ([]*domain.Order, error)
	// AttachPlatformOrder binds the platform-assigned order id to the pending
	// ledger row created at checkout hand-off, refreshing the platform-reported
	// totals and lines.
	AttachPlatformOrder(ctx context.Context, checkoutID, platformOrderID string, totalAmount float64, currency string, lines []domain.OrderLine) error
	// Transition conditionally advances an order's status. The update only
	// applies when the current status is one of from; it returns the updated
	// order when applied and nil when the row is absent or already past from,
	// which is how notification replays collapse into no-ops.
	Transition(ctx context.Context, platformOrderID string, to domain.OrderStatus, from ...domain.OrderStatus) (*domain.Order, error)
	RunMigrations(*Credentials) error
	Close() error
}

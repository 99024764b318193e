package http

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/procktails/storefront/internal/catalog"
	"github.com/procktails/storefront/internal/domain"
	"github.com/procktails/storefront/internal/ledger"
)

type mockCartService struct {
	lastKey      domain.ActorKey
	lastLine     domain.CartLine
	lastProduct  string
	lastQuantity int
	mergedAnon   domain.ActorKey
	mergedAcct   domain.ActorKey
	cleared      bool
	err          error
}

func (m *mockCartService) Get(_ context.Context, key domain.ActorKey) (*domain.Cart, error) {
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	return domain.EmptyCart(key), nil
}

func (m *mockCartService) AddLine(_ context.Context, key domain.ActorKey, line domain.CartLine) (*domain.Cart, error) {
	m.lastKey = key
	m.lastLine = line
	if m.err != nil {
		return nil, m.err
	}
	cart := domain.EmptyCart(key)
	cart.Lines = []domain.CartLine{line}
	return cart, nil
}

func (m *mockCartService) SetQuantity(_ context.Context, key domain.ActorKey, productID string, quantity int) (*domain.Cart, error) {
	m.lastKey = key
	m.lastProduct = productID
	m.lastQuantity = quantity
	if m.err != nil {
		return nil, m.err
	}
	return domain.EmptyCart(key), nil
}

func (m *mockCartService) RemoveLine(_ context.Context, key domain.ActorKey, productID string) (*domain.Cart, error) {
	m.lastKey = key
	m.lastProduct = productID
	if m.err != nil {
		return nil, m.err
	}
	return domain.EmptyCart(key), nil
}

func (m *mockCartService) Clear(_ context.Context, key domain.ActorKey) error {
	m.lastKey = key
	m.cleared = true
	return m.err
}

func (m *mockCartService) MergeIntoAccount(_ context.Context, anonymous, account domain.ActorKey) (*domain.Cart, error) {
	m.mergedAnon = anonymous
	m.mergedAcct = account
	if m.err != nil {
		return nil, m.err
	}
	return domain.EmptyCart(account), nil
}

type mockCatalog struct {
	entries map[string]domain.CatalogEntry
	stale   bool
	err     error
}

func (m *mockCatalog) List(context.Context) ([]domain.CatalogEntry, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	out := make([]domain.CatalogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, m.stale, nil
}

func (m *mockCatalog) Get(_ context.Context, productID string) (domain.CatalogEntry, bool, error) {
	if m.err != nil {
		return domain.CatalogEntry{}, false, m.err
	}
	entry, ok := m.entries[productID]
	if !ok {
		return domain.CatalogEntry{}, false, catalog.ErrNotFound
	}
	return entry, m.stale, nil
}

type mockCheckoutService struct {
	lastReq *domain.CheckoutRequest
	result  *domain.ValidationResult
	session *domain.CheckoutSession
	err     error
}

func (m *mockCheckoutService) Validate(_ context.Context, req *domain.CheckoutRequest) (*domain.ValidationResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockCheckoutService) CreateCheckout(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, *domain.ValidationResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.result, m.err
	}
	return m.session, m.result, nil
}

type mockOrderReader struct {
	byCheckout map[string]*domain.Order
	byActor    map[string][]*domain.Order
}

func (m *mockOrderReader) GetByCheckoutID(_ context.Context, checkoutID string) (*domain.Order, error) {
	if o, ok := m.byCheckout[checkoutID]; ok {
		return o, nil
	}
	return nil, ledger.ErrOrderNotFound
}

func (m *mockOrderReader) ListByActor(_ context.Context, actorKey string) ([]*domain.Order, error) {
	return m.byActor[actorKey], nil
}

type mockApplier struct {
	applied []*ledger.OrderNotification
	err     error
}

func (m *mockApplier) Apply(_ context.Context, n *ledger.OrderNotification) error {
	m.applied = append(m.applied, n)
	return m.err
}

type testDeps struct {
	carts     *mockCartService
	catalog   *mockCatalog
	checkouts *mockCheckoutService
	orders    *mockOrderReader
	applier   *mockApplier
}

const testWebhookSecret = "whsec-test"

func newTestRouter() (chi.Router, *testDeps) {
	deps := &testDeps{
		carts: &mockCartService{},
		catalog: &mockCatalog{entries: map[string]domain.CatalogEntry{
			"gid://platform/Product/1": {
				ProductID: "gid://platform/Product/1",
				Title:     "Smoky Margarita",
				Price:     14.00,
				Currency:  "USD",
				Tags:      []string{"smoky", "palette:terracotta"},
			},
		}},
		checkouts: &mockCheckoutService{},
		orders: &mockOrderReader{
			byCheckout: map[string]*domain.Order{},
			byActor:    map[string][]*domain.Order{},
		},
		applier: &mockApplier{},
	}

	router := NewRouter(RouterConfig{
		Carts:          deps.carts,
		Catalog:        deps.catalog,
		Checkouts:      deps.checkouts,
		Orders:         deps.orders,
		Ledger:         deps.applier,
		WebhookSecret:  testWebhookSecret,
		RequestTimeout: 5 * time.Second,
	})

	return router, deps
}

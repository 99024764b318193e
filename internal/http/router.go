package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/procktails/storefront/internal/actor"
)

type RouterConfig struct {
	Carts          CartService
	Catalog        ProductCatalog
	Checkouts      CheckoutService
	Orders         OrderReader
	Ledger         NotificationApplier
	WebhookSecret  string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout)
	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Checkouts, cfg.Orders, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
	webhookHandler := NewWebhookHandler(cfg.Ledger, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AccountClaimMiddleware)
		r.Use(ActorMiddleware(actor.Resolver{}))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items", cartHandler.UpdateQuantity)
			r.Delete("/items", cartHandler.RemoveItem)
			r.Post("/merge", cartHandler.MergeCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/validate", checkoutHandler.ValidateCheckout)
			r.Post("/create", checkoutHandler.CreateCheckout)
			r.Get("/status", checkoutHandler.CheckoutStatus)
		})

		r.Get("/orders", ordersHandler.ListOrders)
	})

	r.Route("/webhooks/platform/orders", func(r chi.Router) {
		r.Use(WebhookVerifyMiddleware(cfg.WebhookSecret))
		r.Post("/{event}", webhookHandler.HandleOrderEvent)
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/pkg/health"
	"github.com/sofi161/martapp/pkg/middleware"
)

// Services groups what the router dispatches to.
type Services struct {
	Carts    *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Products *service.ProductService
	Sellers  *service.SellerService
}

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	ServiceName    string
	Environment    string
	AllowedOrigins []string
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with every route registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		ExposedHeaders: []string{HeaderReplayed},
		Environment:    cfg.Environment,
	}))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	products := NewProductHandler(svc.Products, logger)
	carts := NewCartHandler(svc.Carts, logger)
	checkout := NewCheckoutHandler(svc.Checkout, logger)
	orders := NewOrderHandler(svc.Orders, logger)
	sellers := NewSellerHandler(svc.Sellers, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(middleware.Identify(middleware.IdentityConfig{
			Roles:       domain.Roles(),
			DefaultRole: domain.RoleBuyer,
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(60))
			r.Get("/products", products.Search)
			r.Get("/products/{id}", products.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Use(middleware.NoStore)

			r.Get("/cart", carts.GetCart)
			r.Delete("/cart", carts.ClearCart)
			r.Post("/cart/items", carts.AddItem)
			r.Put("/cart/items/{productId}", carts.UpdateItem)
			r.Delete("/cart/items/{productId}", carts.RemoveItem)

			r.Post("/checkout", checkout.Checkout)

			r.Get("/orders", orders.ListMine)
			r.Get("/orders/{id}", orders.Get)

			r.Post("/session/logout", carts.Logout)
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleSeller, domain.RoleAdmin))
			r.Use(middleware.NoStore)

			r.Get("/dashboard", sellers.Dashboard)
			r.Get("/analytics", sellers.Analytics)

			r.Get("/products", products.ListMine)
			r.Post("/products", products.Create)
			r.Get("/products/{id}", products.GetMine)
			r.Put("/products/{id}", products.Update)
			r.Delete("/products/{id}", products.Delete)
			r.Patch("/products/{id}/toggle-status", products.ToggleStatus)

			r.Get("/inventory", products.Inventory)
			r.Put("/inventory/{id}", products.UpdateStock)

			r.Get("/orders", orders.ListSeller)
			r.Get("/orders/{id}", orders.GetSeller)
			r.Patch("/orders/{id}/status", orders.UpdateStatus)
		})
	})

	return r
}

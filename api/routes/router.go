package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderengine/api/controllers"
	cartcontrollers "github.com/angelmondragon/orderengine/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/orderengine/api/controllers/orders"
	"github.com/angelmondragon/orderengine/api/middleware"
	"github.com/angelmondragon/orderengine/api/responses"
	"github.com/angelmondragon/orderengine/internal/cart"
	"github.com/angelmondragon/orderengine/internal/orders"
	product "github.com/angelmondragon/orderengine/internal/products"
	"github.com/angelmondragon/orderengine/pkg/config"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

// redisStore is the part of the redis client the HTTP layer needs for
// readiness, idempotency replay and rate limiting.
type redisStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// catalog serves cached product reads and drops entries after stock moves.
type catalog interface {
	product.Reader
	InvalidateProducts(ctx context.Context, ids ...int64) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	catalogReader catalog,
	cartService cart.Service,
	ordersSvc orders.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Identity(logg),
		middleware.Idempotency(redisClient, cfg.Idempotency.TTL, logg),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIdentityLimit,
		cfg.RateLimit.CheckoutIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}, logg))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalogReader, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogReader, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).
				Post("/", ordercontrollers.Create(ordersSvc, catalogReader, logg))
			r.With(middleware.RequireUser(logg)).Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/number/{orderNumber}", ordercontrollers.DetailByNumber(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, catalogReader, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.With(middleware.RequireUser(logg)).Post("/merge", cartcontrollers.CartMerge(cartService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin, logg))
			r.Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(ordersSvc, catalogReader, logg))
		})
	})

	return r
}

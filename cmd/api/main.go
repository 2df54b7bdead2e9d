package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderengine/api/routes"
	"github.com/angelmondragon/orderengine/internal/cart"
	"github.com/angelmondragon/orderengine/internal/ordernumber"
	"github.com/angelmondragon/orderengine/internal/orders"
	"github.com/angelmondragon/orderengine/internal/pricing"
	product "github.com/angelmondragon/orderengine/internal/products"
	"github.com/angelmondragon/orderengine/internal/stock"
	"github.com/angelmondragon/orderengine/internal/users"
	"github.com/angelmondragon/orderengine/pkg/config"
	"github.com/angelmondragon/orderengine/pkg/db"
	"github.com/angelmondragon/orderengine/pkg/instance"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/metrics"
	"github.com/angelmondragon/orderengine/pkg/migrate"
	"github.com/angelmondragon/orderengine/pkg/outbox"
	"github.com/angelmondragon/orderengine/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	productReader, err := product.NewService(product.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	catalog, err := product.NewCachedReader(product.CachedReaderParams{
		Reader:    productReader,
		Cache:     redisClient,
		Logger:    logg,
		KeyPrefix: cfg.Cache.KeyPrefix,
		TTL:       cfg.Cache.ProductTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product cache", err)
		os.Exit(1)
	}

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := stock.NewLedger()

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outboxService,
		Stock:      ledger,
		Numbers:    ordernumber.NewGenerator(),
		Users:      users.NewRepository(dbClient.DB()),
		Pricing:    pricing.RulesFromConfig(cfg.Checkout),
		Metrics:    checkoutMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repository: cart.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outboxService,
		Stock:      ledger,
		Metrics:    checkoutMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			catalog,
			cartService,
			ordersService,
			prometheus.DefaultGatherer,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

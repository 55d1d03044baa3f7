package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelvault/reelvault/handler"
	"github.com/reelvault/reelvault/pkg/broadcast"
	"github.com/reelvault/reelvault/pkg/config"
	"github.com/reelvault/reelvault/pkg/httpserver"
	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/pkg/pg"
	"github.com/reelvault/reelvault/svc/billing"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
	"github.com/reelvault/reelvault/svc/identity"
)

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	DB       pg.Config
	Paddle   billing.PaddleConfig
	Checkout billing.CheckoutConfig
	Waiter   billing.WaiterConfig
	Catalog  catalog.Config
	Identity identity.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Log, logger.WithService("reelvault-api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		log.ErrorContext(ctx, "failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	provider, err := billing.NewPaddleProvider(cfg.Paddle)
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize billing provider", logger.Error(err))
		os.Exit(1)
	}

	directory, err := identity.NewHTTPDirectory(cfg.Identity)
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize identity directory", logger.Error(err))
		os.Exit(1)
	}

	plans := catalog.Default(cfg.Catalog)
	store := entitlement.NewPGStore(pool)

	activations := broadcast.NewMemoryBroadcaster[billing.Activation](16)
	defer activations.Close()

	reconciler := billing.NewReconciler(provider, store, plans, directory, activations, log)
	checkout := billing.NewCheckout(provider, plans, cfg.Checkout, log)
	waiter := billing.NewActivationWaiter(store, activations, cfg.Waiter)
	authorizer := entitlement.NewAuthorizer(store, plans, log)

	api := handler.New(checkout, reconciler, waiter, authorizer, store, plans, log)
	router := api.Routes()
	router.Get("/health", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))

	srv := httpserver.New(cfg.HTTP, log)
	if err := srv.Run(ctx, router); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

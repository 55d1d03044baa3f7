// Package handler exposes the storefront entitlement API over HTTP.
//
// Download denials and pending activations are expected outcomes and are
// returned as structured payloads, not error statuses. Webhook deliveries
// are acknowledged with 200 for everything except signature failures, so
// the provider never retries events we have consciously dropped.
package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/pkg/requestid"
	"github.com/reelvault/reelvault/svc/billing"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

// Handler carries the service dependencies behind the HTTP API.
type Handler struct {
	checkout   *billing.Checkout
	reconciler *billing.Reconciler
	waiter     *billing.ActivationWaiter
	authorizer *entitlement.Authorizer
	store      entitlement.Store
	catalog    *catalog.Catalog
	log        *slog.Logger
}

// New wires an HTTP handler over the billing and entitlement services.
func New(
	checkout *billing.Checkout,
	reconciler *billing.Reconciler,
	waiter *billing.ActivationWaiter,
	authorizer *entitlement.Authorizer,
	store entitlement.Store,
	cat *catalog.Catalog,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		waiter:     waiter,
		authorizer: authorizer,
		store:      store,
		catalog:    cat,
		log:        log.With(logger.Component("handler")),
	}
}

// Routes registers all endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	r.Post("/webhook/billing", h.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", h.handleListPlans)
		r.Post("/checkout", h.handleCheckout)
		r.Post("/downloads", h.handleDownload)
		r.Get("/entitlements/{userID}", h.handleGetEntitlement)
		r.Get("/entitlements/{userID}/activation", h.handleAwaitActivation)
	})

	return r
}

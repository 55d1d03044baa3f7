package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/catalog"
)

// CheckoutConfig holds checkout initiation settings.
type CheckoutConfig struct {
	SuccessURL string        `env:"CHECKOUT_SUCCESS_URL,required"`
	CancelURL  string        `env:"CHECKOUT_CANCEL_URL,required"`
	Timeout    time.Duration `env:"CHECKOUT_TIMEOUT" envDefault:"15s"`
}

// Checkout opens hosted checkout sessions. It is a thin, stateless pass
// through to the provider: entitlement state only ever changes in response
// to settled billing events, never at session creation.
type Checkout struct {
	provider Provider
	catalog  *catalog.Catalog
	cfg      CheckoutConfig
	log      *slog.Logger
}

// NewCheckout wires a checkout initiator.
func NewCheckout(provider Provider, cat *catalog.Catalog, cfg CheckoutConfig, log *slog.Logger) *Checkout {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Checkout{
		provider: provider,
		catalog:  cat,
		cfg:      cfg,
		log:      log.With(logger.Component("billing.checkout")),
	}
}

// Start creates a hosted checkout session for the given user and plan.
// Returns catalog.ErrPlanNotFound for unknown plans, ErrPlanNotPurchasable
// for plans without a price, and ErrUpstreamUnavailable when the provider
// cannot be reached.
func (c *Checkout) Start(ctx context.Context, userID uuid.UUID, email string, planID catalog.PlanID) (*CheckoutSession, error) {
	plan, err := c.catalog.Resolve(planID)
	if err != nil {
		return nil, err
	}
	if !plan.Paid() {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotPurchasable, planID)
	}
	if plan.PriceRef == "" {
		return nil, fmt.Errorf("%w: plan %s has no price reference", ErrMisconfigured, planID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	session, err := c.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		UserID:     userID.String(),
		Email:      email,
		PlanID:     plan.ID,
		PriceRef:   plan.PriceRef,
		Mode:       plan.BillingMode,
		SuccessURL: c.cfg.SuccessURL,
		CancelURL:  c.cfg.CancelURL,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "failed to create checkout session",
			logger.UserID(userID), logger.Plan(planID), logger.Error(err))
		return nil, err
	}

	c.log.InfoContext(ctx, "checkout session created",
		logger.UserID(userID), logger.Plan(planID),
		slog.String("session_ref", session.Ref))
	return session, nil
}

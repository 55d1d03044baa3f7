package billing

import "errors"

var (
	// ErrMisconfigured indicates the provider client is missing credentials
	// or price references required to serve the request.
	ErrMisconfigured = errors.New("billing: provider misconfigured")

	// ErrUpstreamUnavailable indicates the payment provider could not be
	// reached or returned a server-side failure. Callers may retry.
	ErrUpstreamUnavailable = errors.New("billing: upstream unavailable")

	// ErrInvalidSignature indicates a webhook payload failed signature
	// verification and must be rejected.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")

	// ErrUnhandledEvent indicates a webhook event type outside the
	// entitlement lifecycle. It is acknowledged and skipped, never failed.
	ErrUnhandledEvent = errors.New("billing: unhandled event type")

	// ErrPlanNotPurchasable indicates a checkout was requested for a plan
	// that has no price attached.
	ErrPlanNotPurchasable = errors.New("billing: plan not purchasable")

	// ErrActivationPending indicates the activation wait budget elapsed
	// before the entitlement appeared.
	ErrActivationPending = errors.New("billing: activation pending")

	// ErrSessionIncomplete indicates a checkout session was fetched before
	// the provider settled the payment.
	ErrSessionIncomplete = errors.New("billing: checkout session incomplete")
)

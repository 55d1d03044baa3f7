package billing

import (
	"context"

	"github.com/reelvault/reelvault/svc/catalog"
)

// CheckoutRequest carries everything a provider needs to open a hosted
// checkout for one plan. UserID and PlanID travel as session metadata and
// come back on webhook events for correlation.
type CheckoutRequest struct {
	UserID     string
	Email      string
	PlanID     catalog.PlanID
	PriceRef   string
	Mode       catalog.BillingMode
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's handle for a newly created checkout.
type CheckoutSession struct {
	Ref string
	URL string
}

// SessionDetails is the settled state of a checkout session, fetched when a
// client returns from the hosted page before the webhook lands.
type SessionDetails struct {
	Ref             string
	SubscriptionRef string
	CustomerRef     string
	UserID          string
	Email           string
	PlanID          catalog.PlanID
	PriceRef        string
	Mode            catalog.BillingMode
}

// Provider abstracts the payment processor. Implementations verify webhook
// authenticity themselves and translate provider events into the normalized
// Event union before anything downstream sees them.
type Provider interface {
	// CreateCheckoutSession opens a hosted checkout. It never touches
	// entitlement state.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// ParseWebhook verifies the payload signature and normalizes the event.
	// Returns ErrInvalidSignature on verification failure and
	// ErrUnhandledEvent for event types outside the entitlement lifecycle.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)

	// CheckoutSession fetches a completed session by reference. Returns
	// ErrSessionIncomplete while payment has not settled.
	CheckoutSession(ctx context.Context, ref string) (*SessionDetails, error)
}

package billing

import (
	"time"

	"github.com/reelvault/reelvault/svc/catalog"
)

// EventKind is the normalized billing lifecycle event type. Provider
// implementations map their own event names onto these kinds at the
// boundary, so the reconciler never inspects loosely-typed payloads.
type EventKind string

const (
	EventCheckoutCompleted       EventKind = "checkout_completed"
	EventSubscriptionCreated     EventKind = "subscription_created"
	EventSubscriptionUpdated     EventKind = "subscription_updated"
	EventInvoicePaymentSucceeded EventKind = "invoice_payment_succeeded"
	EventInvoicePaymentFailed    EventKind = "invoice_payment_failed"
)

// SubscriptionStatus values carried by SubscriptionUpdated events after
// provider-side normalization.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Event is a validated, normalized billing event. Fields are populated per
// kind; absent metadata stays zero and the reconciler decides how to degrade.
type Event struct {
	ID            string // provider event id, used for duplicate suppression
	Kind          EventKind
	ProviderEvent string // original provider event name, for logs
	OccurredAt    time.Time

	SessionRef      string // checkout session / transaction reference
	SubscriptionRef string
	CustomerRef     string

	// Correlation metadata attached at checkout time. UserID is the primary
	// key back to our user; Email is the degraded fallback.
	UserID string
	Email  string

	// Plan resolution inputs, in order of preference.
	PlanID   catalog.PlanID
	PriceRef string

	BillingMode catalog.BillingMode

	// Status accompanies SubscriptionUpdated events.
	Status string

	// Period bounds reported by the provider; zero when not included.
	PeriodStart time.Time
	PeriodEnd   time.Time
}

package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/svc/catalog"
)

// Status represents the billing state of an entitlement.
type Status string

const (
	StatusActive        Status = "active"
	StatusCancelled     Status = "cancelled"
	StatusPaymentFailed Status = "payment_failed"
	StatusExpired       Status = "expired"
)

// PeriodLength is the fixed billing window. Periods are 30 days, not
// calendar months, matching the payment provider's anchor-free cycle.
const PeriodLength = 30 * 24 * time.Hour

// Entitlement is the per-user record of plan and remaining download balance.
// Exactly one row exists per user; it is created lazily and never
// hard-deleted (cancellation only flips Status).
type Entitlement struct {
	UserID                  uuid.UUID
	PlanID                  catalog.PlanID
	DownloadsRemaining      int
	DownloadsUsedThisPeriod int
	Status                  Status
	PeriodStart             time.Time
	PeriodEnd               time.Time
	ExternalCustomerRef     string
	ExternalSubscriptionRef string
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Version guards conditional updates. Stores bump it on every write;
	// UpdateIf refuses writes whose expected version is stale.
	Version int64
}

// NewDefault returns the zero-quota record created on signup, before any
// checkout has completed.
func NewDefault(userID uuid.UUID, now time.Time) *Entitlement {
	now = now.UTC()
	return &Entitlement{
		UserID:      userID,
		PlanID:      catalog.PlanNone,
		Status:      StatusActive,
		PeriodStart: now,
		PeriodEnd:   now.Add(PeriodLength),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsActive reports whether the entitlement is in good billing standing.
func (e *Entitlement) IsActive() bool {
	return e.Status == StatusActive
}

// PeriodElapsed reports whether the local billing window has ended.
func (e *Entitlement) PeriodElapsed(now time.Time) bool {
	return now.After(e.PeriodEnd)
}

// HasPlan reports whether the entitlement is bound to a paid tier.
func (e *Entitlement) HasPlan() bool {
	return e.PlanID != "" && e.PlanID != catalog.PlanNone
}

// Clone returns a deep copy, letting stores hand out records without
// aliasing their internal state.
func (e *Entitlement) Clone() *Entitlement {
	cp := *e
	return &cp
}

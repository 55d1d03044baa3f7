package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/catalog"
)

// DenyReason explains why a download was not granted. Denials are expected
// user-facing outcomes, not errors.
type DenyReason string

const (
	ReasonNoActivePlan   DenyReason = "no_active_plan"
	ReasonQuotaExhausted DenyReason = "quota_exhausted"
)

// Decision is the outcome of a download authorization.
type Decision struct {
	Granted   bool
	Reason    DenyReason // set only when !Granted
	PlanID    catalog.PlanID
	Remaining int
}

// maxUpdateAttempts bounds CAS retries before the request is surfaced as a
// transient failure the client may retry.
const maxUpdateAttempts = 3

// Authorizer checks and decrements a user's download balance. All mutations
// go through the store's conditional update, so two concurrent requests
// racing on the last download resolve to exactly one grant.
type Authorizer struct {
	store   Store
	catalog *catalog.Catalog
	log     *slog.Logger
	now     func() time.Time
}

// NewAuthorizer returns an Authorizer backed by the given store and catalog.
func NewAuthorizer(store Store, cat *catalog.Catalog, log *slog.Logger) *Authorizer {
	return &Authorizer{
		store:   store,
		catalog: cat,
		log:     log.With(logger.Component("authorizer")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source; used by tests to cross period bounds.
func (a *Authorizer) WithClock(now func() time.Time) *Authorizer {
	a.now = now
	return a
}

// AuthorizeDownload evaluates and, when granted, atomically consumes one
// download. If the local billing period has elapsed it first applies the
// same rollover-or-reset computation a renewal event would, covering the
// window where the provider's renewal webhook has not landed yet.
func (a *Authorizer) AuthorizeDownload(ctx context.Context, userID uuid.UUID) (Decision, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		ent, err := a.store.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Decision{Reason: ReasonNoActivePlan}, nil
			}
			return Decision{}, fmt.Errorf("load entitlement: %w", err)
		}

		if !ent.HasPlan() || ent.Status == StatusExpired {
			return Decision{Reason: ReasonNoActivePlan, PlanID: ent.PlanID}, nil
		}

		plan, err := a.catalog.Resolve(ent.PlanID)
		if err != nil {
			// A stored plan the catalog no longer knows is a configuration
			// error; deny rather than guess at a quota.
			a.log.ErrorContext(ctx, "entitlement references unknown plan",
				logger.UserID(userID), logger.Plan(ent.PlanID))
			return Decision{Reason: ReasonNoActivePlan, PlanID: ent.PlanID}, nil
		}

		now := a.now()
		dirty := false

		if ent.PeriodElapsed(now) {
			if rolled := a.rollPeriod(ent, plan, now); !rolled {
				// Billing lapsed and the period ran out: the entitlement
				// expires instead of self-renewing.
				if err := a.store.UpdateIf(ctx, ent); err != nil {
					if errors.Is(err, ErrVersionConflict) {
						continue
					}
					return Decision{}, fmt.Errorf("expire entitlement: %w", err)
				}
				return Decision{Reason: ReasonNoActivePlan, PlanID: ent.PlanID}, nil
			}
			dirty = true
		}

		if plan.Unbounded() {
			// Unlimited plans never decrement; persist only a pending
			// period roll.
			if dirty {
				if err := a.store.UpdateIf(ctx, ent); err != nil {
					if errors.Is(err, ErrVersionConflict) {
						continue
					}
					return Decision{}, fmt.Errorf("roll period: %w", err)
				}
			}
			return Decision{Granted: true, PlanID: ent.PlanID, Remaining: ent.DownloadsRemaining}, nil
		}

		if ent.DownloadsRemaining <= 0 {
			return Decision{Reason: ReasonQuotaExhausted, PlanID: ent.PlanID}, nil
		}

		ent.DownloadsRemaining--
		ent.DownloadsUsedThisPeriod++

		if err := a.store.UpdateIf(ctx, ent); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return Decision{}, fmt.Errorf("consume download: %w", err)
		}

		return Decision{Granted: true, PlanID: ent.PlanID, Remaining: ent.DownloadsRemaining}, nil
	}

	return Decision{}, ErrTransientFailure
}

// rollPeriod applies the local period boundary. Active entitlements renew
// with rollover semantics; cancelled or payment-failed ones expire with a
// zeroed balance once their paid period ends. Reports whether the
// entitlement is still usable.
func (a *Authorizer) rollPeriod(ent *Entitlement, plan catalog.Plan, now time.Time) bool {
	if !ent.IsActive() {
		ent.Status = StatusExpired
		ent.DownloadsRemaining = 0
		ent.DownloadsUsedThisPeriod = 0
		ent.PeriodStart = now
		ent.PeriodEnd = now.Add(PeriodLength)
		return false
	}

	ent.DownloadsRemaining = RenewedBalance(plan, ent.DownloadsRemaining)
	ent.DownloadsUsedThisPeriod = 0
	ent.PeriodStart = now
	ent.PeriodEnd = now.Add(PeriodLength)
	return true
}

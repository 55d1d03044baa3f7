package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/broadcast"
	"github.com/reelvault/reelvault/pkg/cache"
	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
	"github.com/reelvault/reelvault/svc/identity"
)

// Activation is announced after the reconciler persists an entitlement
// change, letting activation waiters wake up without polling the store.
type Activation struct {
	UserID uuid.UUID
	PlanID catalog.PlanID
	Status entitlement.Status
}

// seenEventCapacity bounds the duplicate-suppression window. Providers
// redeliver within minutes, so a few thousand recent event ids is plenty.
const seenEventCapacity = 4096

// Reconciler folds normalized billing events into the entitlement ledger.
// Every handler recomputes the target state from the event and the current
// record rather than incrementing, so duplicate and out-of-order deliveries
// converge on the same row.
type Reconciler struct {
	provider  Provider
	store     entitlement.Store
	catalog   *catalog.Catalog
	directory identity.Directory
	seen      *cache.LRU[string, struct{}]
	events    broadcast.Broadcaster[Activation]
	log       *slog.Logger
	now       func() time.Time
}

// NewReconciler wires a reconciler. events may be nil when nothing waits on
// activations.
func NewReconciler(
	provider Provider,
	store entitlement.Store,
	cat *catalog.Catalog,
	directory identity.Directory,
	events broadcast.Broadcaster[Activation],
	log *slog.Logger,
) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		provider:  provider,
		store:     store,
		catalog:   cat,
		directory: directory,
		seen:      cache.NewLRU[string, struct{}](seenEventCapacity),
		events:    events,
		log:       log.With(logger.Component("billing.reconciler")),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// ProcessWebhook verifies, normalizes, and applies one webhook delivery.
// Only signature failures surface as errors; everything else is absorbed so
// the HTTP layer can acknowledge and stop provider retries. Processing
// failures that merit a retry (store outages) are returned as well.
func (r *Reconciler) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := r.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		if errors.Is(err, ErrUnhandledEvent) {
			r.log.DebugContext(ctx, "skipping unhandled webhook event", logger.Error(err))
			return nil
		}
		r.log.ErrorContext(ctx, "failed to parse webhook payload", logger.Error(err))
		return nil
	}

	if event.ID != "" && r.seen.Contains(event.ID) {
		r.log.InfoContext(ctx, "suppressing duplicate webhook event",
			logger.EventID(event.ID), logger.EventType(event.ProviderEvent))
		return nil
	}

	if err := r.HandleEvent(ctx, *event); err != nil {
		return err
	}
	if event.ID != "" {
		r.seen.Put(event.ID, struct{}{})
	}
	return nil
}

// HandleEvent applies one normalized event to the ledger.
func (r *Reconciler) HandleEvent(ctx context.Context, event Event) error {
	log := r.log.With(
		logger.EventID(event.ID),
		logger.EventType(event.ProviderEvent),
	)

	switch event.Kind {
	case EventCheckoutCompleted, EventSubscriptionCreated:
		return r.handleActivation(ctx, log, event)
	case EventInvoicePaymentSucceeded:
		return r.handleRenewal(ctx, log, event)
	case EventSubscriptionUpdated:
		return r.handleStatusChange(ctx, log, event)
	case EventInvoicePaymentFailed:
		return r.handlePaymentFailure(ctx, log, event)
	default:
		log.DebugContext(ctx, "ignoring event kind", slog.String("kind", string(event.Kind)))
		return nil
	}
}

// handleActivation processes a completed checkout or a created subscription:
// the user gets the plan's quota, a fresh period, and active standing.
func (r *Reconciler) handleActivation(ctx context.Context, log *slog.Logger, event Event) error {
	userID, ok := r.resolveUser(ctx, log, event)
	if !ok {
		return nil
	}
	plan := r.resolvePlan(ctx, log, event)

	existing, err := r.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, entitlement.ErrNotFound) {
		return fmt.Errorf("load entitlement: %w", err)
	}

	subscriptionRef := event.SubscriptionRef
	if subscriptionRef == "" {
		// One-time purchases have no subscription; the session reference
		// still lets redeliveries of the same checkout be recognized.
		subscriptionRef = event.SessionRef
	}

	if existing != nil && existing.IsActive() &&
		existing.ExternalSubscriptionRef == subscriptionRef && existing.HasPlan() &&
		existing.PlanID == plan.ID {
		log.InfoContext(ctx, "activation already applied", logger.UserID(userID), logger.Plan(plan.ID))
		return nil
	}

	now := r.now().UTC()
	periodStart, periodEnd := event.PeriodStart, event.PeriodEnd
	if periodStart.IsZero() || periodEnd.IsZero() {
		periodStart, periodEnd = now, now.Add(entitlement.PeriodLength)
	}

	ent := &entitlement.Entitlement{
		UserID:                  userID,
		PlanID:                  plan.ID,
		DownloadsRemaining:      entitlement.ActivationBalance(plan, existing),
		DownloadsUsedThisPeriod: 0,
		Status:                  entitlement.StatusActive,
		PeriodStart:             periodStart,
		PeriodEnd:               periodEnd,
		ExternalCustomerRef:     event.CustomerRef,
		ExternalSubscriptionRef: subscriptionRef,
	}
	if err := r.store.Upsert(ctx, ent); err != nil {
		return fmt.Errorf("persist activation: %w", err)
	}

	log.InfoContext(ctx, "entitlement activated",
		logger.UserID(userID), logger.Plan(plan.ID),
		slog.Int("downloads_remaining", ent.DownloadsRemaining))
	r.announce(ctx, ent)
	return nil
}

// handleRenewal processes a recurring payment: the balance is recomputed
// with rollover saturation and the period advances.
func (r *Reconciler) handleRenewal(ctx context.Context, log *slog.Logger, event Event) error {
	existing, err := r.lookup(ctx, log, event)
	if err != nil || existing == nil {
		return err
	}

	plan, err := r.catalog.Resolve(existing.PlanID)
	if err != nil {
		// A renewal for a plan the catalog no longer knows; fall back to
		// the event's plan hints rather than dropping the payment.
		plan = r.resolvePlan(ctx, log, event)
	}

	now := r.now().UTC()
	periodStart, periodEnd := event.PeriodStart, event.PeriodEnd
	if periodStart.IsZero() || periodEnd.IsZero() {
		periodStart, periodEnd = now, now.Add(entitlement.PeriodLength)
	}

	ent := existing.Clone()
	ent.PlanID = plan.ID
	ent.DownloadsRemaining = entitlement.RenewedBalance(plan, existing.DownloadsRemaining)
	ent.DownloadsUsedThisPeriod = 0
	ent.Status = entitlement.StatusActive
	ent.PeriodStart = periodStart
	ent.PeriodEnd = periodEnd
	if event.SubscriptionRef != "" {
		ent.ExternalSubscriptionRef = event.SubscriptionRef
	}
	if event.CustomerRef != "" {
		ent.ExternalCustomerRef = event.CustomerRef
	}

	if err := r.store.Upsert(ctx, ent); err != nil {
		return fmt.Errorf("persist renewal: %w", err)
	}

	log.InfoContext(ctx, "entitlement renewed",
		logger.UserID(ent.UserID), logger.Plan(ent.PlanID),
		slog.Int("downloads_remaining", ent.DownloadsRemaining))
	r.announce(ctx, ent)
	return nil
}

// handleStatusChange flips billing standing without touching the balance.
// Remaining downloads stay spendable until the paid period lapses.
func (r *Reconciler) handleStatusChange(ctx context.Context, log *slog.Logger, event Event) error {
	existing, err := r.lookup(ctx, log, event)
	if err != nil || existing == nil {
		return err
	}

	ent := existing.Clone()
	switch event.Status {
	case SubscriptionStatusActive:
		ent.Status = entitlement.StatusActive
	default:
		ent.Status = entitlement.StatusCancelled
	}
	if !event.PeriodStart.IsZero() && !event.PeriodEnd.IsZero() {
		ent.PeriodStart = event.PeriodStart
		ent.PeriodEnd = event.PeriodEnd
	}

	if ent.Status == existing.Status && ent.PeriodStart.Equal(existing.PeriodStart) && ent.PeriodEnd.Equal(existing.PeriodEnd) {
		return nil
	}

	if err := r.store.Upsert(ctx, ent); err != nil {
		return fmt.Errorf("persist status change: %w", err)
	}

	log.InfoContext(ctx, "entitlement status changed",
		logger.UserID(ent.UserID), slog.String("status", string(ent.Status)))
	r.announce(ctx, ent)
	return nil
}

// handlePaymentFailure marks the record payment_failed. The balance is left
// alone; access lapses when the local period elapses without recovery.
func (r *Reconciler) handlePaymentFailure(ctx context.Context, log *slog.Logger, event Event) error {
	existing, err := r.lookup(ctx, log, event)
	if err != nil || existing == nil {
		return err
	}
	if existing.Status == entitlement.StatusPaymentFailed {
		return nil
	}

	ent := existing.Clone()
	ent.Status = entitlement.StatusPaymentFailed
	if err := r.store.Upsert(ctx, ent); err != nil {
		return fmt.Errorf("persist payment failure: %w", err)
	}

	log.WarnContext(ctx, "entitlement payment failed", logger.UserID(ent.UserID))
	r.announce(ctx, ent)
	return nil
}

// ActivateBySession reconciles directly from a checkout session, used when
// the client lands on the success page before the webhook arrives. The
// resulting state is identical to webhook-driven activation, so whichever
// path runs second becomes a no-op.
func (r *Reconciler) ActivateBySession(ctx context.Context, sessionRef string) (*entitlement.Entitlement, error) {
	details, err := r.provider.CheckoutSession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}

	event := Event{
		Kind:            EventCheckoutCompleted,
		ProviderEvent:   "checkout.session.fetched",
		SessionRef:      details.Ref,
		SubscriptionRef: details.SubscriptionRef,
		CustomerRef:     details.CustomerRef,
		UserID:          details.UserID,
		Email:           details.Email,
		PlanID:          details.PlanID,
		PriceRef:        details.PriceRef,
		BillingMode:     details.Mode,
	}

	log := r.log.With(logger.EventType(event.ProviderEvent))
	userID, ok := r.resolveUser(ctx, log, event)
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	if err := r.handleActivation(ctx, log, event); err != nil {
		return nil, err
	}
	return r.store.Get(ctx, userID)
}

// lookup finds the entitlement an event refers to, preferring the user
// metadata and falling back to the subscription reference. A miss is logged
// and swallowed: events for unknown records must not trigger retries.
func (r *Reconciler) lookup(ctx context.Context, log *slog.Logger, event Event) (*entitlement.Entitlement, error) {
	if event.UserID != "" {
		if userID, err := uuid.Parse(event.UserID); err == nil {
			ent, err := r.store.Get(ctx, userID)
			if err == nil {
				return ent, nil
			}
			if !errors.Is(err, entitlement.ErrNotFound) {
				return nil, fmt.Errorf("load entitlement: %w", err)
			}
		}
	}

	if event.SubscriptionRef != "" {
		ent, err := r.store.GetBySubscriptionRef(ctx, event.SubscriptionRef)
		if err == nil {
			return ent, nil
		}
		if !errors.Is(err, entitlement.ErrNotFound) {
			return nil, fmt.Errorf("load entitlement by subscription ref: %w", err)
		}
	}

	log.WarnContext(ctx, "no entitlement matches billing event",
		slog.String("subscription_ref", event.SubscriptionRef))
	return nil, nil
}

// resolveUser extracts the target user from event metadata. When the user id
// is missing or malformed it degrades to an email lookup against the identity
// directory, logging the degradation. Events that resolve neither way are
// dropped, never retried.
func (r *Reconciler) resolveUser(ctx context.Context, log *slog.Logger, event Event) (uuid.UUID, bool) {
	if event.UserID != "" {
		if userID, err := uuid.Parse(event.UserID); err == nil {
			return userID, true
		}
		log.WarnContext(ctx, "malformed user id in event metadata",
			slog.String("raw_user_id", event.UserID))
	}

	if event.Email != "" && r.directory != nil {
		user, err := r.directory.UserByEmail(ctx, event.Email)
		if err == nil {
			log.WarnContext(ctx, "resolved user by email fallback", logger.UserID(user.ID))
			return user.ID, true
		}
		log.ErrorContext(ctx, "email fallback lookup failed", logger.Error(err))
	}

	log.ErrorContext(ctx, "dropping event with no resolvable user")
	return uuid.Nil, false
}

// resolvePlan maps event metadata to a catalog plan: explicit plan id first,
// then the price reference, then the basic tier as a logged last resort so a
// paying customer is never left with nothing.
func (r *Reconciler) resolvePlan(ctx context.Context, log *slog.Logger, event Event) catalog.Plan {
	if event.PlanID != "" {
		if plan, err := r.catalog.Resolve(event.PlanID); err == nil {
			return plan
		}
		log.WarnContext(ctx, "unknown plan id in event metadata", logger.Plan(event.PlanID))
	}

	if event.PriceRef != "" {
		if plan, err := r.catalog.ResolveByPriceRef(event.PriceRef); err == nil {
			return plan
		}
		log.WarnContext(ctx, "unknown price reference in event",
			slog.String("price_ref", event.PriceRef))
	}

	log.WarnContext(ctx, "defaulting unresolvable plan to basic tier")
	plan, err := r.catalog.Resolve(catalog.PlanBasic)
	if err != nil {
		// Catalog without a basic tier is a deployment error; grant nothing.
		log.ErrorContext(ctx, "basic tier missing from catalog", logger.Error(err))
		return catalog.Plan{ID: catalog.PlanNone}
	}
	return plan
}

// announce publishes the new entitlement state to activation waiters.
func (r *Reconciler) announce(ctx context.Context, ent *entitlement.Entitlement) {
	if r.events == nil {
		return
	}
	_ = r.events.Broadcast(ctx, broadcast.Message[Activation]{Data: Activation{
		UserID: ent.UserID,
		PlanID: ent.PlanID,
		Status: ent.Status,
	}})
}

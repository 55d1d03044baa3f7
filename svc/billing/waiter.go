package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/broadcast"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

// WaiterConfig holds activation wait settings.
type WaiterConfig struct {
	PollInterval time.Duration `env:"ACTIVATION_POLL_INTERVAL" envDefault:"2s"`
	WaitBudget   time.Duration `env:"ACTIVATION_WAIT_BUDGET" envDefault:"60s"`
}

// ActivationWaiter blocks until a user's entitlement reflects a completed
// checkout. The success page calls this to bridge the gap between the client
// returning from checkout and the webhook landing. It combines a broadcast
// subscription for immediate wakeups with periodic store polls as a safety
// net for announcements that never arrive.
type ActivationWaiter struct {
	store  entitlement.Store
	events broadcast.Broadcaster[Activation]
	cfg    WaiterConfig
}

// NewActivationWaiter wires a waiter. events may be nil, in which case only
// polling drives the wait.
func NewActivationWaiter(store entitlement.Store, events broadcast.Broadcaster[Activation], cfg WaiterConfig) *ActivationWaiter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.WaitBudget <= 0 {
		cfg.WaitBudget = 60 * time.Second
	}
	return &ActivationWaiter{store: store, events: events, cfg: cfg}
}

// Wait blocks until the user holds an active paid entitlement, the wait
// budget elapses (ErrActivationPending), or ctx is cancelled. When planID is
// non-empty the entitlement must carry that exact plan; otherwise any paid
// plan satisfies the wait.
func (w *ActivationWaiter) Wait(ctx context.Context, userID uuid.UUID, planID catalog.PlanID) (*entitlement.Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.WaitBudget)
	defer cancel()

	// Subscribe before the first check so an activation landing between
	// check and wait is not missed.
	var updates <-chan broadcast.Message[Activation]
	if w.events != nil {
		sub := w.events.Subscribe(ctx)
		defer sub.Close()
		updates = sub.Receive(ctx)
	}

	if ent, ok, err := w.check(ctx, userID, planID); err != nil || ok {
		return ent, err
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrActivationPending
			}
			return nil, ctx.Err()

		case msg, open := <-updates:
			if !open {
				updates = nil
				continue
			}
			if msg.Data.UserID != userID {
				continue
			}
			if ent, ok, err := w.check(ctx, userID, planID); err != nil || ok {
				return ent, err
			}

		case <-ticker.C:
			if ent, ok, err := w.check(ctx, userID, planID); err != nil || ok {
				return ent, err
			}
		}
	}
}

// check reads the entitlement and reports whether it satisfies the wait.
func (w *ActivationWaiter) check(ctx context.Context, userID uuid.UUID, planID catalog.PlanID) (*entitlement.Entitlement, bool, error) {
	ent, err := w.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, entitlement.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !ent.IsActive() || !ent.HasPlan() {
		return nil, false, nil
	}
	if planID != "" && ent.PlanID != planID {
		return nil, false, nil
	}
	return ent, true, nil
}

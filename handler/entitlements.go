package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/billing"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

type entitlementPayload struct {
	UserID             string    `json:"user_id"`
	Plan               string    `json:"plan"`
	Status             string    `json:"status"`
	DownloadsRemaining int       `json:"downloads_remaining"`
	DownloadsUsed      int       `json:"downloads_used"`
	Unbounded          bool      `json:"unbounded"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
}

func entitlementToPayload(ent *entitlement.Entitlement) entitlementPayload {
	return entitlementPayload{
		UserID:             ent.UserID.String(),
		Plan:               string(ent.PlanID),
		Status:             string(ent.Status),
		DownloadsRemaining: ent.DownloadsRemaining,
		DownloadsUsed:      ent.DownloadsUsedThisPeriod,
		Unbounded:          ent.DownloadsRemaining >= catalog.UnboundedQuota,
		PeriodStart:        ent.PeriodStart,
		PeriodEnd:          ent.PeriodEnd,
	}
}

// handleGetEntitlement returns the user's current ledger row. Users without
// a record get the zero-quota default rather than a 404, mirroring the lazy
// creation the reconciler applies.
func (h *Handler) handleGetEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ent, err := h.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, entitlement.ErrNotFound) {
			respondJSON(w, http.StatusOK, entitlementToPayload(entitlement.NewDefault(userID, time.Now())))
			return
		}
		h.log.ErrorContext(ctx, "failed to load entitlement",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, entitlementToPayload(ent))
}

// handleAwaitActivation blocks until the user's checkout has been folded
// into the ledger, or responds 202 when the wait budget lapses first.
// The optional plan query parameter narrows the wait to one tier; the
// optional session_ref triggers direct reconciliation from the provider
// when the webhook has not landed yet.
func (h *Handler) handleAwaitActivation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	planID := catalog.PlanID(r.URL.Query().Get("plan"))

	if sessionRef := r.URL.Query().Get("session_ref"); sessionRef != "" {
		ent, err := h.reconciler.ActivateBySession(ctx, sessionRef)
		if err == nil && ent.UserID == userID {
			respondJSON(w, http.StatusOK, entitlementToPayload(ent))
			return
		}
		// A session belonging to a different user is never served here.
		if err == nil {
			h.log.WarnContext(ctx, "checkout session does not belong to requester",
				logger.UserID(userID), slog.String("session_ref", sessionRef))
		}
		// Fall through to waiting on the webhook.
	}

	ent, err := h.waiter.Wait(ctx, userID, planID)
	switch {
	case errors.Is(err, billing.ErrActivationPending):
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	case err != nil:
		h.log.ErrorContext(ctx, "activation wait failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "activation wait failed")
	default:
		respondJSON(w, http.StatusOK, entitlementToPayload(ent))
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/billing"
	"github.com/reelvault/reelvault/svc/catalog"
)

type checkoutRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	PlanID string `json:"plan_id"`
}

type checkoutResponse struct {
	SessionRef  string `json:"session_ref"`
	CheckoutURL string `json:"checkout_url"`
}

// handleCheckout opens a hosted checkout session for a plan.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if req.PlanID == "" {
		respondError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	session, err := h.checkout.Start(ctx, userID, req.Email, catalog.PlanID(req.PlanID))
	switch {
	case errors.Is(err, catalog.ErrPlanNotFound):
		respondError(w, http.StatusNotFound, "unknown plan")
	case errors.Is(err, billing.ErrPlanNotPurchasable):
		respondError(w, http.StatusUnprocessableEntity, "plan cannot be purchased")
	case errors.Is(err, billing.ErrUpstreamUnavailable):
		respondError(w, http.StatusBadGateway, "payment provider unavailable")
	case err != nil:
		h.log.ErrorContext(ctx, "checkout failed", logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "checkout failed")
	default:
		respondJSON(w, http.StatusCreated, checkoutResponse{
			SessionRef:  session.Ref,
			CheckoutURL: session.URL,
		})
	}
}

type planPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MonthlyQuota int    `json:"monthly_quota"`
	RolloverCap  int    `json:"rollover_cap,omitempty"`
	Unbounded    bool   `json:"unbounded"`
	PriceAmount  int64  `json:"price_amount"`
	Currency     string `json:"price_currency,omitempty"`
	BillingMode  string `json:"billing_mode"`
}

// handleListPlans returns the purchasable plan catalog.
func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.catalog.Plans()
	out := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		if !p.Paid() {
			continue
		}
		out = append(out, planPayload{
			ID:           string(p.ID),
			Name:         p.Name,
			Description:  p.Description,
			MonthlyQuota: p.MonthlyQuota,
			RolloverCap:  p.RolloverCap,
			Unbounded:    p.Unbounded(),
			PriceAmount:  p.Price.Amount,
			Currency:     p.Price.Currency,
			BillingMode:  string(p.BillingMode),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"plans": out})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/svc/entitlement"
)

type downloadRequest struct {
	UserID  string `json:"user_id"`
	AssetID string `json:"asset_id"`
}

type downloadResponse struct {
	Granted   bool   `json:"granted"`
	Reason    string `json:"reason,omitempty"`
	Plan      string `json:"plan,omitempty"`
	Remaining int    `json:"remaining"`
}

// handleDownload authorizes and consumes one download. Denials are 200s
// with granted=false; only infrastructure failures produce error statuses.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	decision, err := h.authorizer.AuthorizeDownload(ctx, userID)
	if err != nil {
		if errors.Is(err, entitlement.ErrTransientFailure) {
			respondError(w, http.StatusConflict, "busy, retry")
			return
		}
		h.log.ErrorContext(ctx, "download authorization failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "authorization failed")
		return
	}

	respondJSON(w, http.StatusOK, downloadResponse{
		Granted:   decision.Granted,
		Reason:    string(decision.Reason),
		Plan:      string(decision.PlanID),
		Remaining: decision.Remaining,
	})
}

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/reelvault/reelvault/pkg/logger"
	"github.com/reelvault/reelvault/pkg/requestid"
	"github.com/reelvault/reelvault/svc/billing"
)

// maxWebhookBody bounds webhook payload reads. Paddle events are small;
// anything past 1 MiB is not a legitimate delivery.
const maxWebhookBody = 1 << 20

// handleWebhook receives billing provider deliveries. The contract with the
// provider is acknowledge-or-retry: 400 only for signature failures, 500
// only when persistence failed and a retry can succeed, 200 for everything
// else including events we deliberately drop.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.log.ErrorContext(ctx, "failed to read webhook body", logger.Error(err))
		respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	signature := r.Header.Get("Paddle-Signature")
	if err := h.reconciler.ProcessWebhook(ctx, payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			respondError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		h.log.ErrorContext(ctx, "webhook processing failed",
			logger.Error(err), slog.String("request_id", requestid.FromContext(ctx)))
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

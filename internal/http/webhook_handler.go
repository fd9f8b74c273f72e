package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/greenbox-dev/greenbox/internal/gateway"
	"github.com/greenbox-dev/greenbox/internal/service"
)

type WebhookHandler struct {
	settlement *service.SettlementService
	timeout    time.Duration
}

func NewWebhookHandler(settlement *service.SettlementService) *WebhookHandler {
	return &WebhookHandler{settlement: settlement, timeout: 15 * time.Second}
}

type webhookAck struct {
	Outcome string `json:"outcome"`
}

// HandleWebhook handles POST /api/v1/payment/webhook. The gateway retries on
// non-2xx, so everything except a bad signature or an internal failure is
// acknowledged with 200; the outcome field records what actually happened.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var payload gateway.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	outcome, err := h.settlement.Reconcile(ctx, &payload)
	if err != nil {
		if errors.Is(err, service.ErrBadSignature) {
			respondError(w, http.StatusUnauthorized, "bad_signature", "webhook signature verification failed")
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, webhookAck{Outcome: string(outcome)})
}

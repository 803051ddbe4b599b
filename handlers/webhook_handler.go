package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"folioAPI/internal/billing"
	"folioAPI/internal/types/subscription"
	"folioAPI/middleware"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

type WebhookHandler struct {
	engine *billing.Engine
}

func NewWebhookHandler(engine *billing.Engine) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// HandleProviderWebhook serves POST /webhooks/{provider}. The body is read
// raw because signatures are computed over the exact bytes received.
func (h *WebhookHandler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := subscription.Provider(mux.Vars(r)["provider"])
	eventName := ""
	outcome := "accepted"
	defer func() {
		middleware.ObserveWebhook(string(name), eventName, outcome, time.Since(start))
	}()

	provider, ok := h.engine.Provider(name)
	if !ok {
		outcome = "unknown_provider"
		respondWithError(w, http.StatusNotFound, "Unknown webhook provider")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		outcome = "bad_request"
		if errors.As(err, new(*http.MaxBytesError)) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// A verified delivery is applied to completion even if the provider hangs up.
	ctx := context.WithoutCancel(r.Context())
	ev, err := h.engine.HandleWebhook(ctx, name, body, r.Header.Get(provider.SignatureHeader()))
	if ev != nil {
		eventName = string(ev.Name)
	}

	var authErr *billing.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		outcome = "rejected"
		log.Ctx(ctx).Warn().Str("provider", string(name)).Str("reason", authErr.Reason).Msg("Rejected webhook with invalid signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	case err != nil:
		outcome = "failed"
		log.Ctx(ctx).Error().Err(err).Str("provider", string(name)).Msg("Webhook processing failed")
		respondWithError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	if ev.Name == billing.EventUnknown {
		outcome = "ignored"
	}
	respondWithJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}

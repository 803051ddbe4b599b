package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"folioAPI/internal/billing"
	"folioAPI/internal/types/subscription"
	"folioAPI/middleware"
)

type SubscriptionReader interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
}

type SubscriptionHandler struct {
	subscriptions SubscriptionReader
}

func NewSubscriptionHandler(subscriptions SubscriptionReader) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

type subscriptionResponse struct {
	*subscription.Subscription
	IsPro bool `json:"isPro"`
}

// GetMySubscription returns the caller's subscription row. Users without a
// row are on the free plan and get a 404.
func (h *SubscriptionHandler) GetMySubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sub, err := h.subscriptions.GetSubscriptionByUserID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "No subscription found")
			return
		}
		log.Ctx(ctx).Error().Err(err).Str("user_id", clerkID).Msg("Failed to load subscription")
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, subscriptionResponse{Subscription: sub, IsPro: sub.IsPro()})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

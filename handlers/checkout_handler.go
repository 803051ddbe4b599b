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
	"folioAPI/services"
)

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, userID string, req subscription.CheckoutRequest) (*subscription.CheckoutResponse, error)
	ListPrices(ctx context.Context) ([]services.Price, error)
}

type CheckoutHandler struct {
	checkout CheckoutCreator
}

func NewCheckoutHandler(checkout CheckoutCreator) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req subscription.CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Plan {
	case subscription.PlanProMonthly, subscription.PlanProYearly, subscription.PlanProLifetime:
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid plan")
		return
	}

	resp, err := h.checkout.CreateCheckout(ctx, clerkID, req)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownProvider):
			respondWithError(w, http.StatusBadRequest, "Unknown payment provider")
		case errors.Is(err, services.ErrPlanNotAvailable):
			respondWithError(w, http.StatusBadRequest, "Plan is not available for this provider")
		case errors.Is(err, services.ErrProviderNotConfigured):
			respondWithError(w, http.StatusServiceUnavailable, "Payment provider is not configured")
		default:
			log.Ctx(ctx).Error().Err(err).
				Str("user_id", clerkID).
				Str("provider", string(req.Provider)).
				Msg("Failed to create checkout")
			respondWithError(w, http.StatusBadGateway, "Failed to create checkout")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	prices, err := h.checkout.ListPrices(ctx)
	if err != nil {
		if errors.Is(err, services.ErrProviderNotConfigured) {
			respondWithError(w, http.StatusServiceUnavailable, "Payment provider is not configured")
			return
		}
		log.Ctx(ctx).Error().Err(err).Msg("Failed to list prices")
		respondWithError(w, http.StatusBadGateway, "Failed to list prices")
		return
	}

	respondWithJSON(w, http.StatusOK, prices)
}

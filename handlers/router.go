package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"folioAPI/middleware"
)

type RouterConfig struct {
	Webhooks     *WebhookHandler
	Checkout     *CheckoutHandler
	Subscription *SubscriptionHandler
	Health       http.HandlerFunc

	// Auth guards the /api/v1 routes that need a signed-in user.
	Auth        func(http.Handler) http.Handler
	RateLimiter *middleware.RateLimiter

	MetricsUser string
	MetricsPass string
	PprofSecret string
	// Pprof serves /debug/pprof/. Usually http.DefaultServeMux.
	Pprof http.Handler
}

func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	// Providers retry on their own schedule; webhooks skip the per-IP limiter.
	r.HandleFunc("/webhooks/{provider}", cfg.Webhooks.HandleProviderWebhook).Methods(http.MethodPost)

	standardRouter := r.PathPrefix("/").Subrouter()
	if cfg.RateLimiter != nil {
		standardRouter.Use(cfg.RateLimiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	if cfg.Pprof != nil {
		standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(cfg.Pprof))
	}
	standardRouter.HandleFunc("/health", cfg.Health).Methods(http.MethodGet)

	api := standardRouter.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/prices", cfg.Checkout.GetPrices).Methods(http.MethodGet)

	protected := api.PathPrefix("").Subrouter()
	protected.Use(cfg.Auth)

	protected.HandleFunc("/checkout", cfg.Checkout.CreateCheckout).Methods(http.MethodPost)
	protected.HandleFunc("/subscription", cfg.Subscription.GetMySubscription).Methods(http.MethodGet)

	return r
}

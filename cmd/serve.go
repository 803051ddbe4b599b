package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"folioAPI/handlers"
	"folioAPI/internal/billing"
	"folioAPI/internal/config"
	"folioAPI/internal/database"
	"folioAPI/internal/logging"
	"folioAPI/middleware"
	"folioAPI/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("memory", false, "use the in-memory store instead of Postgres")
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "folio-api"})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Memory, _ = cmd.Flags().GetBool("memory")

	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "folio-api"})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	clerk.SetKey(cfg.ClerkSecretKey)
	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store         billing.Store
		recorder      billing.Recorder
		checkoutAudit services.CheckoutRecorder
		health        handlers.Pinger
	)
	if cfg.Memory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		store = billing.NewMemoryStore()
	} else {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			log.Info().Msg("Closing database connection pool")
			pool.Close()
		}()

		subscriptions := services.NewSubscriptionService(pool)
		audit := services.NewAuditService(pool)
		store, health = subscriptions, subscriptions
		recorder, checkoutAudit = audit, audit
	}

	engine := billing.NewEngine(store, recorder,
		billing.NewLemonSqueezy(cfg.LemonSqueezy.WebhookSecret, cfg.LemonSqueezy.Catalog),
		billing.NewPaddle(cfg.Paddle.WebhookSecret, cfg.Paddle.Catalog, cfg.Paddle.WebhookTolerance),
	)

	paddleCfg := services.PaddleConfig{Sandbox: cfg.Paddle.Sandbox(), Catalog: cfg.Paddle.Catalog}
	if cfg.Paddle.APIKey != "" {
		baseURL := paddle.ProductionBaseURL
		if paddleCfg.Sandbox {
			baseURL = paddle.SandboxBaseURL
		}
		client, err := paddle.New(cfg.Paddle.APIKey, paddle.WithBaseURL(baseURL))
		if err != nil {
			return fmt.Errorf("failed to create paddle client: %w", err)
		}
		paddleCfg.Client = client
	}

	checkout := services.NewCheckoutService(
		services.LemonSqueezyConfig{
			APIKey:  cfg.LemonSqueezy.APIKey,
			StoreID: cfg.LemonSqueezy.StoreID,
			BaseURL: cfg.LemonSqueezy.APIURL,
			Catalog: cfg.LemonSqueezy.Catalog,
		},
		paddleCfg,
		cfg.AppBaseURL,
		checkoutAudit,
	)

	limiter := middleware.NewRateLimiter(5, 30)
	go limiter.Cleanup(ctx)

	router := handlers.NewRouter(handlers.RouterConfig{
		Webhooks:     handlers.NewWebhookHandler(engine),
		Checkout:     handlers.NewCheckoutHandler(checkout),
		Subscription: handlers.NewSubscriptionHandler(store),
		Health:       handlers.HealthCheck(health),
		Auth:         middleware.ClerkAuthMiddleware,
		RateLimiter:  limiter,
		MetricsUser:  cfg.MetricsUser,
		MetricsPass:  cfg.MetricsPass,
		PprofSecret:  cfg.PprofSecret,
		Pprof:        http.DefaultServeMux,
	})

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{cfg.AppBaseURL}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret", "X-Request-ID"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "X-Request-ID"}),
		gorillaHandlers.AllowCredentials(),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("version", Version).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}

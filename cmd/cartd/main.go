// cartd - Leaf Shop cart service.
// Keeps the shopper's cart in a local store, reconciles it with the Leaf Shop
// API, and serves it to the storefront over REST and to the chatbot over MCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leafcart/internal/cart"
	"leafcart/internal/config"
	"leafcart/internal/enrich"
	"leafcart/internal/handler"
	"leafcart/internal/identity"
	"leafcart/internal/middleware"
	"leafcart/internal/shopapi"
	"leafcart/internal/storage"
	"leafcart/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("shop_url", cfg.Shop.BaseURL),
		slog.String("store_path", cfg.StorePath),
		slog.String("transport", string(cfg.Transport)),
		slog.Bool("serialize_mutations", cfg.SerializeMutations),
	)

	svc, err := newCartService(cfg, logger)
	if err != nil {
		return err
	}

	// Initial sync. Failure is not fatal: the persisted cart is served
	// until the shop is reachable again.
	startCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	res := svc.Start(startCtx)
	cancel()
	logger.Info("initial sync finished",
		slog.Bool("replaced", res.Replaced),
		slog.Int("items", len(res.Items)),
		slog.String("reason", res.Reason),
	)

	h := handler.New(svc, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newCartService wires the store, identity, shop client, and enricher into
// a cart service.
func newCartService(cfg *config.Config, logger *slog.Logger) (*cart.Service, error) {
	store, err := storage.OpenFile(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	ids, err := identity.New(store)
	if err != nil {
		return nil, fmt.Errorf("creating identity provider: %w", err)
	}

	shop, err := shopapi.New(shopapi.Config{
		BaseURL:    cfg.Shop.BaseURL,
		APIKey:     cfg.Shop.APIKey,
		HTTPClient: transport.NewHTTPClient(cfg.Transport, cfg.RequestTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("creating shop client: %w", err)
	}

	enricher := enrich.New(shop, enrich.Config{
		ExpirationMinutes: cfg.MediaURLExpirationMinutes,
		Concurrency:       cfg.EnrichConcurrency,
		PlaceholderImage:  cfg.PlaceholderImage,
	}, logger)

	svc, err := cart.New(ids, shop, enricher, store, logger, cart.Options{
		SerializeMutations: cfg.SerializeMutations,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cart service: %w", err)
	}
	return svc, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

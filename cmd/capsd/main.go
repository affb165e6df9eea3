// capsd negotiates W3C WebDriver capabilities against constraint profiles.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webdriver-caps/internal/adapter"
	"webdriver-caps/internal/config"
	"webdriver-caps/internal/handler"
	"webdriver-caps/internal/middleware"
	"webdriver-caps/internal/model"
	"webdriver-caps/internal/negotiation"
	"webdriver-caps/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := initLogger(cfg.Environment, cfg.LogLevel)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("profile_source", cfg.Profile.Source),
		slog.String("profile_transport", cfg.Profile.Transport),
		slog.String("min_profile_version", cfg.Profile.MinVersion),
		slog.Bool("strict_profiles", cfg.Profile.Strict),
	)

	// Create adapter based on configuration
	source, err := createAdapter(cfg)
	if err != nil {
		return fmt.Errorf("creating adapter: %w", err)
	}

	defaultProfile, err := loadDefaultProfile(ctx, source, logger)
	if err != nil {
		return err
	}

	negotiator, err := newNegotiator(cfg, defaultProfile, logger)
	if err != nil {
		return err
	}

	h := handler.New(negotiator, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → negotiation → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		negotiation.Middleware(negotiator, logger),
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

// createAdapter creates the default profile source based on configuration.
func createAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Profile.Source {
	case config.SourceBuiltin:
		return adapter.Builtin{}, nil
	case config.SourceFile:
		return adapter.File{Path: cfg.Profile.File}, nil
	case config.SourceSecret:
		return adapter.Static{Origin: cfg.SecretName(), Data: cfg.Profile.Data}, nil
	default:
		return nil, fmt.Errorf("unsupported profile source: %s", cfg.Profile.Source)
	}
}

// loadDefaultProfile reads the default profile once at startup.
func loadDefaultProfile(ctx context.Context, source adapter.Adapter, logger *slog.Logger) (*model.ConstraintProfile, error) {
	profile, err := source.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading default constraint profile: %w", err)
	}
	if len(profile.Constraints) == 0 {
		logger.Warn("default constraint profile has no constraints",
			slog.String("profile", profile.Label()))
	}

	logger.Info("default constraint profile loaded",
		slog.String("profile", profile.Label()),
		slog.Int("constraints", len(profile.Constraints)),
	)
	return profile, nil
}

// newNegotiator wires the remote profile fetcher and the negotiator.
func newNegotiator(cfg *config.Config, defaultProfile *model.ConstraintProfile, logger *slog.Logger) (*negotiation.Negotiator, error) {
	rt, err := transport.New(cfg.Profile.Transport, cfg.Profile.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating profile transport: %w", err)
	}

	fetcher := negotiation.NewHTTPProfileFetcherWithConfig(negotiation.ProfileFetcherConfig{
		CacheTTL:     cfg.Profile.CacheTTL,
		FetchTimeout: cfg.Profile.FetchTimeout,
		Transport:    rt,
	})

	return negotiation.NewNegotiator(fetcher, defaultProfile, negotiation.Options{
		MinProfileVersion: cfg.Profile.MinVersion,
		StrictProfiles:    cfg.Profile.Strict,
		Logger:            logger,
	}), nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(environment, logLevel string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

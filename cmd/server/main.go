package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/coach-scheduling/internal/api"
	"alcyxob/coach-scheduling/internal/config"
	"alcyxob/coach-scheduling/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logger     zerolog.Logger
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Coach scheduling engine",
	Long:  "Availability, booking, plan materialization and appointment reminders for coaching calendars.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
}

// @title Coach Scheduling API
// @version 1.0
// @description Public booking pages, coach calendar management and athlete schedules.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Log.Env, cfg.Log.Level)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info().Str("database", cfg.Database.Driver).Str("notifier", cfg.Notifier.Driver).Msg("coach scheduling starting")

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	// --- Initialize Gin Engine ---
	if cfg.Log.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger, a.metrics))

	api.SetupRoutes(router, api.RouterConfig{
		JWTSecret:      cfg.JWT.Secret,
		SweepToken:     cfg.Server.SweepToken,
		MaxHorizonDays: cfg.Scheduling.MaxHorizonDays,
		Metrics:        a.metrics.Handler(),
	}, a.availability, a.bookings, a.plans, a.reminders)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Address).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info().Msg("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	// Confirmation sends run detached from requests; let them finish.
	if err := a.bookings.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("pending confirmations abandoned")
	}

	logger.Info().Msg("coach scheduling stopped")
	return nil
}

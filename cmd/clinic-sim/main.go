// Package main provides the in-memory clinic simulator entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/clinicsim"
	"github.com/clinicdesk/consult/internal/observability/metrics"
	"github.com/clinicdesk/consult/internal/observability/tracing"
)

// Config holds simulator configuration
type Config struct {
	Port         string
	OTLPEndpoint string
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := loadConfig()

	ctx := context.Background()
	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("clinic-sim")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(ctx, tcfg)
		if err != nil {
			logger.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				provider.Shutdown(shutdownCtx)
			}()
		}
	}

	sim := clinicsim.New(logger)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/", sim.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down simulator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting clinic simulator", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8085"
	}

	return Config{
		Port:         port,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}
}

// Package main starts an HTTP server that provides endpoints for health checks
// and pipeline validation. It uses the internal handlers package to process
// incoming requests and return JSON responses.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pipeweave/core/cmd/api/middleware"
	"github.com/pipeweave/core/internal/config"
	"github.com/pipeweave/core/internal/handlers"
	"github.com/pipeweave/core/internal/logging"
)

func newRouter(cfg *config.Config, logger *zap.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Cors(cfg.CORS.AllowedOrigins))

	parse := handlers.ParseHandler(logger)

	router.Get("/", handlers.PingHandler)
	router.Get("/health", handlers.HealthHandler)
	router.Get("/pipelines/parse", parse)
	router.Post("/pipelines/parse", parse)

	return router
}

func main() {
	cfg, err := config.Load(os.Getenv("PIPEWEAVE_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("🚀 Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

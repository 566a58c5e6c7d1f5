// Package main is the entry point for the shopfloor ledger API server.
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

	"shopfloor/internal/app"
	"shopfloor/internal/config"
	"shopfloor/internal/core/idempotency"
	"shopfloor/internal/domain/auth"
	v1 "shopfloor/internal/infrastructure/http/v1"
	"shopfloor/internal/infrastructure/http/v1/handlers"
	"shopfloor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting shopfloor server", "storage", cfg.App.Storage, "env", cfg.App.Env)

	rt, err := openResources(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer rt.Close()

	services := app.NewServices(rt.backend, app.Options{Locker: rt.locker})

	var idem idempotency.Store
	if cfg.Idempotency.Enabled {
		idem = rt.idempotency
		if idem == nil {
			log.Warn("idempotency enabled but no store available in this storage mode; X-Idempotency-Key is ignored")
		}
	}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Auth.JWTSecret))

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Services:     services,
		Health:       handlers.NewHealthHandler(string(cfg.App.Storage), rt.checks),
		Idempotency:  idem,
		Development:  cfg.App.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

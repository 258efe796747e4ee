package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/config"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/httpserver"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/ingest"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/logging"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/store"
)

// main boots the service: config → logging → schema → DB → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply migrations before the pool opens so `docker compose up --build` is enough.
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	db, err := store.NewPostgresStore(ctx, store.Options{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var limiter *httpserver.RateLimiter
	if cfg.Security.RateLimitEnabled && cfg.Security.RateLimitRPS > 0 {
		limiter = httpserver.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
		go limiter.Run(ctx, 5*time.Minute)
	}

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Store:    db,
		Ingester: ingest.NewEngine(db),
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	logging.Info().Msg("server stopped")
}

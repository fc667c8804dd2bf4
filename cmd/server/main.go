package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiloshop/orderform/internal/attempt"
	"github.com/kiloshop/orderform/internal/config"
	"github.com/kiloshop/orderform/internal/logging"
	"github.com/kiloshop/orderform/internal/router"
	"github.com/kiloshop/orderform/internal/session"
	"github.com/kiloshop/orderform/internal/submit"
	"github.com/kiloshop/orderform/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site, err := config.LoadSite(cfg.SiteConfig)
	if err != nil {
		return err
	}
	idx, err := site.Index()
	if err != nil {
		return fmt.Errorf("site catalog: %w", err)
	}

	endpoint := cfg.OrderEndpoint
	if endpoint == "" {
		endpoint = site.Endpoint
	}
	if endpoint == "" {
		logger.Warn("no order endpoint configured; submissions will be refused")
	}

	var attempts attempt.Store = attempt.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		attempts = attempt.NewPostgresStore(pool)
		logger.Info("recording submission attempts in postgres")
	}

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	sessions := session.NewManager(session.Options{
		Catalog:  idx,
		Delivery: site.CartDelivery(),
		Payments: site.Pay,
		Submit: submit.Config{
			Endpoint:   endpoint,
			Timeout:    cfg.SubmitTimeout,
			LandingURL: cfg.LandingURL,
		},
		HasEmail: site.HasEmail(),
		TTL:      cfg.SessionTTL,
	}, nil, attempts, hub, logger.Named("session"))
	go sessions.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, sessions, attempts, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Int("products", idx.Len()),
			zap.Bool("delivery", site.CartDelivery().Available))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SubmitTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

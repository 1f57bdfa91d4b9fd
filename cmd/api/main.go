package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/database"
	"storefront-checkout/internal/handler"
	"storefront-checkout/internal/infrastructure/payment"
	"storefront-checkout/internal/repo"
	"storefront-checkout/internal/service"
	"storefront-checkout/internal/worker"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "main").Logger()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	db, err := database.NewPostgres()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	dbService := database.New(db)

	orderRepo := repo.NewOrderRepo(db)
	itemRepo := repo.NewItemRepo(db)

	var gateway payment.PaymentGateway
	if cfg.FastPayBaseURL != "" {
		gateway = payment.NewFastPayGateway(cfg.FastPayBaseURL, cfg.FastPayAPIKey, cfg.FastPayTimeout)
	} else {
		logger.Warn().Msg("FASTPAY_BASE_URL not set, using in-memory mock gateway")
		gateway = payment.NewMockGateway()
	}

	orderService := service.NewOrderService(db, orderRepo, itemRepo, gateway, cfg.TaxRate, cfg.Currency)
	webhookService := service.NewWebhookService(cfg.WebhookSecret, orderRepo)

	reaper := worker.NewReaper(orderRepo, gateway, cfg.ReaperInterval, cfg.ReaperMaxAge)
	go reaper.Run(ctx)

	router := handler.NewRouter(
		handler.NewOrderHandler(orderService),
		handler.NewWebhookHandler(webhookService),
		dbService,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := dbService.Close(); err != nil {
		logger.Error().Err(err).Msg("database close failed")
	}
}

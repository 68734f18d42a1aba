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

	"github.com/dealsheet/backend/config"
	httpDelivery "github.com/dealsheet/backend/internal/delivery/http"
	"github.com/dealsheet/backend/internal/infrastructure/store"
	"github.com/dealsheet/backend/internal/usecase"
	"github.com/dealsheet/backend/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.ForComponent("server")

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("store", cfg.Store.Type).
		Dur("store_ttl", cfg.Store.TTL).
		Msg("Starting DealSheet Backend v1.0.0")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	priceStore, err := store.Open(openCtx, cfg.Store)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price store")
	}
	defer priceStore.Close()

	pricer := usecase.NewFixedReferencePricer(cfg.Pricing.ReferencePrice, cfg.Pricing.ReferencePrices)
	log.Info().
		Float64("reference_price", cfg.Pricing.ReferencePrice).
		Int("overrides", len(cfg.Pricing.ReferencePrices)).
		Msg("Reference pricing configured")

	// Initialize usecase layer
	deals := usecase.NewDealService(priceStore, pricer, usecase.DealServiceConfig{
		PlaceholderImageURI: cfg.Pricing.PlaceholderImageURI,
	})

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(deals)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server listening")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// Praxis execution core — the event-sourced SINGLE_SHOT command
// pipeline against Binance Spot.
//
// Architecture: Command → Executor → Venue Adapter → Event Spine → Projection
// The user-data stream and the Telegram notifier are optional external
// collaborators wired in alongside the core, not part of it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/praxis-trading/core/internal/cache"
	"github.com/praxis-trading/core/internal/config"
	"github.com/praxis-trading/core/internal/domain"
	"github.com/praxis-trading/core/internal/executor"
	"github.com/praxis-trading/core/internal/notify"
	"github.com/praxis-trading/core/internal/observability"
	"github.com/praxis-trading/core/internal/spine"
	"github.com/praxis-trading/core/internal/userstream"
	"github.com/praxis-trading/core/internal/venue/binance"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.Setup(cfg.Debug, cfg.Debug)
	log.Info().Str("version", version).Str("account_id", cfg.AccountID).Msg("praxis execution core starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, driver, err := spine.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event spine")
	}
	defer db.Close()

	eventSpine := spine.New(db, driver)
	if err := eventSpine.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure spine schema")
	}

	epochID, err := eventSpine.CurrentEpoch(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to determine current epoch")
	}
	log.Info().Int64("epoch_id", epochID).Msg("event spine ready")

	symbolCache, err := cache.New(cfg.CacheDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open symbol filter cache")
	}
	if err := symbolCache.RegisterAccount(cfg.AccountID, cfg.BinanceTestnet); err != nil {
		log.Fatal().Err(err).Msg("failed to register account in cache")
	}

	adapter := binance.NewAdapter(cfg.BinanceRESTBase, cfg.RequestTimeout, binance.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	})
	adapter.RegisterAccount(cfg.AccountID, cfg.BinanceAPIKey, cfg.BinanceAPISecret)

	exec := executor.New(eventSpine, adapter, epochID)
	if _, err := exec.Recover(ctx, cfg.AccountID); err != nil {
		log.Fatal().Err(err).Msg("failed to recover projection from event spine")
	}
	log.Info().Msg("projection recovered from epoch replay")

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		telegram, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("telegram notifier disabled: failed to initialize")
		} else {
			exec.SetNotifier(telegram)
			log.Info().Msg("telegram outcome notifier enabled")
		}
	}

	consumer := userstream.NewConsumer(
		cfg.BinanceRESTBase, cfg.BinanceWSBase, cfg.BinanceAPIKey, cfg.AccountID,
		func(streamCtx context.Context, event domain.Event) {
			if err := exec.ApplyExternalEvent(streamCtx, event); err != nil {
				log.Warn().Err(err).Str("event_type", event.EventType()).Msg("failed to apply user stream event")
			}
		},
		exec.ResolveOrder,
	)
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("user stream consumer exited")
		}
	}()

	log.Info().Msg("all services started, waiting for shutdown signal")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond) // let the user-stream goroutine observe ctx cancellation
	log.Info().Msg("praxis execution core stopped")
}

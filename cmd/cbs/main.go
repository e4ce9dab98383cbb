package main

import (
	"context"

	balanceservice "github.com/skypanel/cbs/internal/application/balance"
	paymentservice "github.com/skypanel/cbs/internal/application/payments"
	transferservice "github.com/skypanel/cbs/internal/application/transfer"
	"github.com/skypanel/cbs/internal/events"
	"github.com/skypanel/cbs/internal/gateway"
	"github.com/skypanel/cbs/internal/infrastructure/database"
	"github.com/skypanel/cbs/internal/repositories/accountrepo"
	"github.com/skypanel/cbs/internal/repositories/paymentrepo"
	"github.com/skypanel/cbs/internal/server"
	"github.com/skypanel/cbs/internal/server/websocket"
	"github.com/skypanel/cbs/pkg/config"
	"github.com/skypanel/cbs/pkg/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		TimeFormat: cfg.Logger.TimeFormat,
		Pretty:     cfg.Logger.Pretty,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.ShutDown()

	wsHub := websocket.NewWsHub(log)
	go wsHub.Run()

	accountRepo := accountrepo.New(db, log)
	sessionRepo := paymentrepo.New(db, log)

	balanceSvc := balanceservice.New(accountRepo, log, wsHub)
	trackerSvc := paymentservice.New(sessionRepo, cfg.Payments, log, wsHub)
	transferSvc := transferservice.New(accountRepo, cfg.Transfer, log, wsHub)

	stripeAdapter := gateway.NewStripeAdapter(trackerSvc, cfg.Payments.Stripe, log)
	paypalAdapter := gateway.NewPayPalAdapter(trackerSvc, cfg.Payments.PayPal, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := trackerSvc.StartSessionExpirer(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Session expirer exited")
		}
	}()

	if cfg.Events.Enabled {
		outbox, err := events.NewOutboxProcessor(db, cfg.Events, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message broker")
		}
		defer outbox.Close()
		go func() {
			if err := outbox.Start(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("Ledger event publisher exited")
			}
		}()
	}

	srv := server.New(cfg, balanceSvc, trackerSvc, transferSvc, stripeAdapter, paypalAdapter, log, wsHub)
	srv.Start()
}

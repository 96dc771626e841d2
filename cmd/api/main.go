package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lv-bintrade/internal/config"
	"lv-bintrade/internal/db"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/funding"
	"lv-bintrade/internal/httpserver"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/observability"
	"lv-bintrade/internal/override"
	"lv-bintrade/internal/pricing"
	"lv-bintrade/internal/settlement"
	"lv-bintrade/internal/trades"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		bootLog := observability.NewLogger("api", "")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := observability.NewLogger("api", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ledgerStore  ledger.Store
		tradeStore   trades.Store
		fundingStore funding.Store
	)
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		pgLedger := ledger.NewPostgresStore(pool, cfg.DemoStartBalance)
		ledgerStore = pgLedger
		tradeStore = trades.NewPostgresStore(pool)
		fundingStore = funding.NewPostgresStore(pool, pgLedger)
	} else {
		log.Warn().Msg("DB_DSN empty, using in-memory stores")
		memLedger := ledger.NewMemoryStore(cfg.DemoStartBalance)
		ledgerStore = memLedger
		tradeStore = trades.NewMemoryStore()
		fundingStore = funding.NewMemoryStore(memLedger)
	}

	bus := events.NewBus()
	if cfg.NATSURL != "" {
		forwarder, err := events.NewForwarder(cfg.NATSURL, observability.NewLogger("nats", cfg.LogLevel))
		if err != nil {
			log.Fatal().Err(err).Msg("nats")
		}
		defer forwarder.Close()
		go forwarder.Run(ctx, bus)
	}

	quotes := pricing.NewQuoteTable()
	feed := pricing.NewFeed(quotes, observability.NewLogger("feed", cfg.LogLevel))
	feed.Start(ctx)

	ledgerSvc := ledger.NewService(ledgerStore, bus)
	policies := override.NewController(override.Policy{
		PayoutMultiplier: cfg.PayoutMultiplier,
		MinWager:         cfg.MinWager,
		MaxWager:         cfg.MaxWager,
	})
	scheduler := settlement.NewScheduler(tradeStore, ledgerSvc, quotes, policies, bus,
		observability.NewLogger("settlement", cfg.LogLevel), cfg.SettleRetryMax, cfg.SettleRetryBackoff)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	defer scheduler.Stop()

	engine := trades.NewEngine(tradeStore, ledgerSvc, quotes, policies, scheduler)
	fundingSvc := funding.NewService(fundingStore, ledgerSvc, bus,
		observability.NewLogger("funding", cfg.LogLevel), funding.Config{
			MinDeposit:   cfg.MinDeposit,
			RefMinLength: cfg.DepositRefMinLen,
		})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		TradeHandler:    trades.NewHandler(engine),
		LedgerHandler:   ledger.NewHandler(ledgerSvc),
		FundingHandler:  funding.NewHandler(fundingSvc),
		OverrideHandler: override.NewHandler(policies),
		WSHandler:       httpserver.NewWSHandler(bus, cfg.WebSocketOrigin),
		InternalToken:   cfg.InternalToken,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

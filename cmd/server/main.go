package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqpadapter "uzimasmart/internal/adapters/amqp"
	httpadapter "uzimasmart/internal/adapters/http"
	"uzimasmart/internal/adapters/memory"
	mongoadapter "uzimasmart/internal/adapters/mongo"
	pg "uzimasmart/internal/adapters/postgres"
	"uzimasmart/internal/adapters/sms"
	"uzimasmart/internal/adapters/sqlite"
	"uzimasmart/internal/config"
	"uzimasmart/internal/consensus"
	"uzimasmart/internal/logging"
	"uzimasmart/internal/ports"
	"uzimasmart/internal/services/alerts"
	"uzimasmart/internal/services/analytics"
	"uzimasmart/internal/services/counties"
	"uzimasmart/internal/services/interactions"
	"uzimasmart/internal/services/reports"
	"uzimasmart/internal/services/subscriptions"
	"uzimasmart/internal/workers/notifier"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "driver", cfg.StoreDriver, "err", err)
	}
	defer store.Close()
	migrateCtx, migrateCancel := context.WithTimeout(ctx, time.Minute)
	err = store.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("migrate", "driver", cfg.StoreDriver, "err", err)
	}
	logger.Info("store ready", "driver", cfg.StoreDriver)

	// Post-commit side effects
	var tasks ports.PostCommit
	var queue *notifier.Queue
	if cfg.NotifyWorkers > 0 {
		queue = notifier.New(notifier.Options{Size: cfg.NotifyQueue, Timeout: cfg.NotifyTimeout}, logger)
		queue.Run(context.WithoutCancel(ctx), cfg.NotifyWorkers)
		tasks = queue
		logger.Info("notify workers started", "workers", cfg.NotifyWorkers, "queue", cfg.NotifyQueue)
	} else {
		tasks = notifier.Inline{Timeout: cfg.NotifyTimeout, OnOutcome: notifier.LogOutcome(logger)}
	}

	var sender ports.SMSSender = sms.LogSender{Log: logger}
	if cfg.SMS.APIKey != "" {
		sender = sms.NewClient(sms.Options{
			Username:   cfg.SMS.Username,
			APIKey:     cfg.SMS.APIKey,
			SenderID:   cfg.SMS.SenderID,
			BaseURL:    cfg.SMS.BaseURL,
			RatePerSec: cfg.SMS.RatePerSec,
		})
	} else {
		logger.Warn("AFRICASTALKING_API_KEY not set, SMS will only be logged")
	}

	var publisher ports.AlertPublisher
	if cfg.AMQP.URL != "" {
		p, err := amqpadapter.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Fatal("amqp", "err", err)
		}
		defer p.Close()
		publisher = p
		logger.Info("publishing alerts", "exchange", cfg.AMQP.Exchange)
	}

	th := consensus.DefaultThresholds()
	countySvc := counties.New(store, cfg.StoreTimeout)
	alertSvc := alerts.New(store, countySvc, sender, publisher, tasks, logger, alerts.Options{
		StoreTimeout: cfg.StoreTimeout,
		Thresholds:   th,
		BatchPause:   time.Second,
	})
	srv := httpadapter.New(httpadapter.Services{
		Reports: reports.New(store, countySvc, alertSvc, sender, tasks, logger, reports.Options{
			MergeMode:    cfg.MergeMode,
			StoreTimeout: cfg.StoreTimeout,
			Thresholds:   th,
		}),
		Interactions: interactions.New(store, tasks, logger, interactions.Options{
			StoreTimeout: cfg.StoreTimeout,
			Thresholds:   th,
		}),
		Alerts:        alertSvc,
		Analytics:     analytics.New(store, countySvc, cfg.StoreTimeout, nil),
		Counties:      countySvc,
		Subscriptions: subscriptions.New(store, logger, cfg.StoreTimeout, nil),
	}, logger, cfg.CORSOrigins)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env, "merge_mode", cfg.MergeMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if queue != nil {
		queue.Close()
		if n := queue.Dropped(); n > 0 {
			logger.Warn("notify tasks dropped", "count", n)
		}
	}
	// deferred: amqp close, then store close
}

func openStore(ctx context.Context, cfg config.Config) (ports.EventStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return pg.Connect(ctx, cfg.DatabaseURL)
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case "mongo":
		return mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return memory.New(), nil
	}
}

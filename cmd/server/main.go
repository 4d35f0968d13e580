package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PulseMail/internal/api"
	"PulseMail/internal/config"
	"PulseMail/internal/credential"
	"PulseMail/internal/db"
	"PulseMail/internal/email"
	"PulseMail/internal/executor"
	"PulseMail/internal/inbox"
	"PulseMail/internal/metrics"
	"PulseMail/internal/registry"
	"PulseMail/internal/scheduler"
	"PulseMail/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	var logger *zap.Logger
	if cfg.LogDev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Credentials + Database
	// ------------------------------------------------
	vault, err := credential.Open(credential.Options{
		Backend:  cfg.KeyringBackend,
		Dir:      cfg.KeyringDir,
		Password: cfg.KeyringPassword,
	})
	if err != nil {
		logger.Fatal("failed to open credential store", zap.Error(err))
	}

	store, err := db.New(cfg.DatabaseURL, vault, loc)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()
	logger.Info("database ready", zap.Bool("postgres", cfg.Postgres()))

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Delivery: SMTP mailer + rate limiter + batch sender
	// ------------------------------------------------
	mailer := email.NewSMTPMailer(cfg.RetryAttempts)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	sender := &email.BatchSender{
		Mailer:  mailer,
		Limiter: limiter,
		Logs:    store,
		Log:     logger.Named("sender"),
	}

	// ------------------------------------------------
	// Scheduler + dispatch queue + registry
	// ------------------------------------------------
	sched := scheduler.New(loc, logger.Named("scheduler"))
	queue := worker.NewQueue(cfg.QueueSize, logger.Named("queue"))
	reg := registry.New(store, sched, queue.Enqueue, logger.Named("registry"))

	exec := &executor.Executor{
		Store:    store,
		Sender:   sender,
		Registry: reg,
		Loc:      loc,
		Log:      logger.Named("executor"),
	}

	// ------------------------------------------------
	// Worker Pool
	// ------------------------------------------------
	var wg sync.WaitGroup

	worker.StartPool(
		ctx,
		&wg,
		cfg.WorkerCount,
		queue.C(),
		exec,
		logger.Named("worker"),
	)

	loaded, err := reg.LoadAll(ctx)
	if err != nil {
		logger.Fatal("failed to load schedules", zap.Error(err))
	}
	sched.Start()
	logger.Info("schedules restored", zap.Int("jobs", loaded))

	// ------------------------------------------------
	// Inbox monitor
	// ------------------------------------------------
	imap := inbox.IMAPClient{}

	if cfg.InboxEnabled {
		monitor := &inbox.Monitor{
			Accounts: store,
			Fetcher:  imap,
			Processor: &inbox.Processor{
				Store:  store,
				Mailer: mailer,
				Dir:    cfg.AttachmentsDir,
				Log:    logger.Named("inbox"),
			},
			Interval: cfg.InboxPollInterval,
			Log:      logger.Named("inbox"),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Run(ctx)
		}()
	}

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store:    store,
		Registry: reg,
		Sender:   sender,
		SMTP:     mailer,
		Mailbox:  imap,
		Validate: validator.New(),
		Log:      logger.Named("api"),

		AttachmentsDir: cfg.AttachmentsDir,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Routes(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Stop firing, then stop accepting firings
	sched.Stop(shutdownCtx)
	queue.Close()

	// Wait for in-flight executions to finish
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

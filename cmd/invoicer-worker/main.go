package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicer/internal/amqp"
	"invoicer/internal/backend"
	"invoicer/internal/cli"
	applog "invoicer/internal/log"
	"invoicer/internal/profile"
	"invoicer/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	p, err := profile.Load(cfg.CompanyProfile)
	if err != nil {
		logger.Error("Failed to load company profile", applog.FieldError, err)
		os.Exit(1)
	}
	calc, _, rule := cli.Policies(cfg)

	resolver, err := cli.NewLogoResolver(p, cfg.LogoCacheTTL, nil, logger)
	if err != nil {
		logger.Error("Invalid logo configuration", applog.FieldError, err)
		os.Exit(1)
	}
	archive, err := worker.NewArchive(cfg.ArchiveDir)
	if err != nil {
		logger.Error("Failed to open archive", applog.FieldError, err, "dir", cfg.ArchiveDir)
		os.Exit(1)
	}

	ledgerCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger configuration", applog.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger.WithComponent(applog.ComponentLedger)).NewLedger(context.Background(), ledgerCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", applog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, ledger,
		worker.WithArchive(cli.NewRenderer(p, calc, rule, resolver), archive),
		worker.WithCalculator(calc),
		worker.WithBatchSize(cfg.SyncBatchSize),
		worker.WithLogger(logger))

	processor := worker.NewSyncProcessor(syncWorker, worker.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	}, logger)

	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", applog.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Warn("AMQP_URL not set, relying on polling only",
			"poll_interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop sync processor", applog.FieldError, err)
		}
	})

	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Start(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeInvoiceEvents(gctx, syncWorker.HandleEvent)
		})
	}

	logger.Info("Invoicer worker started",
		"archive", archive.Dir(),
		"events", consumer != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

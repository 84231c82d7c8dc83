package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"invoicer/internal/amqp"
	"invoicer/internal/cache"
	"invoicer/internal/cli"
	apphttp "invoicer/internal/http"
	applog "invoicer/internal/log"
	"invoicer/internal/profile"
	"invoicer/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	p, err := profile.Load(cfg.CompanyProfile)
	if err != nil {
		logger.Error("Failed to load company profile",
			applog.FieldError, err,
			"path", cfg.CompanyProfile)
		os.Exit(1)
	}
	calc, policy, rule := cli.Policies(cfg)

	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache))
	manager.StartCleanup(5 * time.Minute)

	resolver, err := cli.NewLogoResolver(p, cfg.LogoCacheTTL, manager, logger)
	if err != nil {
		logger.Error("Invalid logo configuration", applog.FieldError, err)
		os.Exit(1)
	}
	renderer := cli.NewRenderer(p, calc, rule, resolver)

	opts := []services.Option{
		services.WithCalculator(calc),
		services.WithValidationPolicy(policy),
		services.WithStatusRule(rule),
		services.WithFormats(p.CurrencyFormat(), p.WordsFormat()),
		services.WithRenderer(renderer),
		services.WithLogger(logger.WithComponent(applog.ComponentInvoice)),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", applog.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(client))
		logger.Info("Invoice events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP_URL not set, invoice events disabled")
	}
	svc := services.NewInvoiceService(repo, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithAuth(cfg.AuthUser, cfg.AuthPass),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		manager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", applog.FieldError, err)
		}
	})

	logger.Info("Starting invoicer server",
		"port", cfg.Port,
		"company", p.Name,
		"auth", cfg.AuthEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kartarkiv/invoice-service/internal/config"
	"github.com/kartarkiv/invoice-service/internal/handler"
	"github.com/kartarkiv/invoice-service/internal/infra/postgresql"
	"github.com/kartarkiv/invoice-service/internal/infra/postgresql/migrations"
	infraredis "github.com/kartarkiv/invoice-service/internal/infra/redis"
	"github.com/kartarkiv/invoice-service/internal/mailer"
	"github.com/kartarkiv/invoice-service/internal/observability"
	"github.com/kartarkiv/invoice-service/internal/ratelimit"
	"github.com/kartarkiv/invoice-service/internal/render"
	"github.com/kartarkiv/invoice-service/internal/repository"
	"github.com/kartarkiv/invoice-service/internal/service"
	"github.com/kartarkiv/invoice-service/internal/transport"
)

const (
	shutdownTimeout = 15 * time.Second
	invoiceTimezone = "Europe/Oslo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("invoice-service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	var (
		rdb     *goredis.Client
		limiter ratelimit.Limiter = ratelimit.Unlimited{}
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.InvoiceEmailRatePerSec)
		if err != nil {
			return fmt.Errorf("rate limiter initialization failed: %w", err)
		}
	} else {
		logger.Warn("REDIS_URL not set; invoice email rate limiting is disabled")
	}

	metrics := observability.NewMetrics()

	sender, err := mailer.NewSenderFromConfig(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("email sender initialization failed: %w", err)
	}

	location, err := time.LoadLocation(invoiceTimezone)
	if err != nil {
		return fmt.Errorf("failed to load %s timezone: %w", invoiceTimezone, err)
	}

	renderer := render.NewRenderer(render.Options{
		Seller: render.Seller{
			Name:  cfg.InvoiceSellerName,
			Email: cfg.InvoiceSellerEmail,
			OrgNr: cfg.InvoiceSellerOrgNr,
		},
		Compress: true,
	})

	invoices, err := service.NewInvoiceService(
		repository.NewGormInvoiceRepo(db),
		renderer,
		sender,
		limiter,
		metrics,
		service.Options{
			SellerName:    cfg.InvoiceSellerName,
			From:          cfg.EmailFrom,
			ReplyTo:       cfg.EmailReplyTo,
			DueDays:       cfg.InvoiceDueDays,
			AccountNumber: cfg.InvoiceAccountNumber,
			Location:      location,
			RateLimitWait: cfg.EmailOverallTimeout(),
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("invoice service initialization failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "invoice-service",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
		// Delivery can take the whole overall timeout plus rendering.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.EmailOverallTimeout() + 10*time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterInvoiceRoutes(app, invoices); err != nil {
		return fmt.Errorf("failed to register invoice routes: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("invoice-service api started",
			zap.Int("port", cfg.APIPort),
			zap.Bool("resend", cfg.ResendConfigured()),
			zap.Bool("smtp", cfg.SMTPConfigured()),
		)
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down invoice-service api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

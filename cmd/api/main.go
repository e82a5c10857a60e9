package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"paypal-billing/internal/client"
	"paypal-billing/internal/config"
	"paypal-billing/internal/lock"
	"paypal-billing/internal/logger"
	"paypal-billing/internal/mail"
	"paypal-billing/internal/metrics"
	"paypal-billing/internal/repository"
	"paypal-billing/internal/server"
	"paypal-billing/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := client.InitDatabase(cfg.Database, log)
	if err != nil {
		return err
	}

	metrics.MustRegister()

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb)
	} else {
		log.Info("redis not configured, refund lock disabled")
	}

	notifier := mail.NewCreditNotifier(mail.NewSender(cfg.Mail, log), cfg.Mail.From, cfg.Mail.FromName)

	reconciler := service.NewReconciler(
		log,
		repository.NewTransactor(db),
		repository.NewTransactionRepository(db),
		repository.NewOrganizationRepository(db),
		repository.NewUserRepository(db),
		service.NewBalanceCreditSink(),
		notifier,
		locker,
		service.ReconcilerOptions{
			BusinessID: cfg.Paypal.BusinessID,
			LockTTL:    cfg.Redis.LockTTL,
		},
	)

	paypalService := service.NewPaypalService(
		log,
		client.NewPaypalClient(&cfg.Paypal),
		client.NewIpnClient(&cfg.Paypal),
		reconciler,
		repository.NewNotificationRepository(db),
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(log, cfg.Paypal.WebhookKey, paypalService)

	log.Info("starting HTTP server", zap.String("addr", serverAddr), zap.String("environment", cfg.Environment.Name))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
	}
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

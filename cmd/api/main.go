package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/josh-kwaku/banking-service/internal/config"
	"github.com/josh-kwaku/banking-service/internal/handler"
	"github.com/josh-kwaku/banking-service/internal/identity"
	"github.com/josh-kwaku/banking-service/internal/logging"
	"github.com/josh-kwaku/banking-service/internal/messaging"
	"github.com/josh-kwaku/banking-service/internal/migrations"
	"github.com/josh-kwaku/banking-service/internal/outbox"
	"github.com/josh-kwaku/banking-service/internal/repository"
	"github.com/josh-kwaku/banking-service/internal/service/banking"
	"github.com/josh-kwaku/banking-service/internal/service/ledger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("banking service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("banking-service", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		logger.Info("migrations applied")
	}

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, 30)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.Check{"database": db.PingContext}
	var (
		ledgerOpts []ledger.Option
		workers    sync.WaitGroup
	)

	if cfg.EventsEnabled() {
		events := repository.NewEventRepository(db)
		publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()

		ledgerOpts = append(ledgerOpts, ledger.WithEvents(events))
		checks["kafka"] = publisher.Ping

		processor := outbox.NewProcessor(events, publisher, db, logger, outbox.Config{
			Interval:    cfg.OutboxPollInterval,
			BatchSize:   cfg.OutboxBatchSize,
			MaxAttempts: cfg.OutboxMaxAttempts,
		})
		workers.Add(1)
		go func() {
			defer workers.Done()
			processor.Start(ctx)
		}()
	} else {
		logger.Info("event publishing disabled, KAFKA_BROKERS is empty")
	}

	ledgerSvc := ledger.NewService(
		repository.NewTransactionRepository(db),
		repository.NewAccountRepository(db),
		db,
		ledgerOpts...,
	)
	identityClient := identity.NewClient(cfg.IdentityServiceURL, &http.Client{},
		identity.WithTimeout(cfg.IdentityTimeout),
		identity.WithRetry(cfg.IdentityMaxRetries, cfg.IdentityRetryWait),
	)
	bankingSvc := banking.NewService(identityClient, ledgerSvc)

	router := newRouter(logger, cfg.CORSAllowedOrigins,
		handler.NewBankingHandler(bankingSvc),
		handler.NewHealthHandler(checks),
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "identity_service", cfg.IdentityServiceURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err = <-serveErr:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("server forced to shutdown", "error", shutdownErr)
	}
	workers.Wait()

	if err != nil {
		return fmt.Errorf("run: serve: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

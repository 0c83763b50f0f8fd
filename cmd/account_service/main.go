package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/bank-accounts-service/internal/accounts"
	"github.com/bank-accounts-service/internal/accrual"
	"github.com/bank-accounts-service/internal/api"
	"github.com/bank-accounts-service/internal/config"
	"github.com/bank-accounts-service/internal/consumer"
	"github.com/bank-accounts-service/internal/data/mongo"
	"github.com/bank-accounts-service/internal/data/postgres"
	"github.com/bank-accounts-service/internal/dispatcher"
	"github.com/bank-accounts-service/internal/ledger"
	"github.com/bank-accounts-service/internal/logger"
	"github.com/bank-accounts-service/internal/platform/messaging/consumers"
	"github.com/bank-accounts-service/internal/platform/messaging/producers"
	"github.com/bank-accounts-service/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("account_service")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Account Service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	minimumInterest, err := decimal.NewFromString(cfg.Accrual.MinimumInterest)
	if err != nil {
		log.Error("Invalid ACCRUAL_MINIMUM_INTEREST value", "value", cfg.Accrual.MinimumInterest, "error", err)
		os.Exit(1)
	}

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	inboxRepo := postgres.NewInboxRepository(log, postgresDB)
	eventArchive := mongo.NewEventArchive(log, mongoDB.Database())

	// Initialize Kafka producer and consumer
	eventProducer, err := producers.NewAccountEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka event producer", "error", err)
		os.Exit(1)
	}
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize services
	ledgerService := ledger.NewService(
		log,
		postgresDB,
		accountRepo,
		transactionRepo,
		outboxRepo,
		minimumInterest,
		cfg.Accrual.MinimumPeriod,
	)
	accountsService := accounts.NewService(
		log,
		postgresDB,
		accountRepo,
		transactionRepo,
		outboxRepo,
		inboxRepo,
	)

	// Initialize outbox dispatcher
	outboxDispatcher := dispatcher.NewDispatcher(
		&cfg.Outbox,
		outboxRepo,
		eventProducer,
		eventArchive,
		log,
	)

	// Initialize control event handler
	controlEventHandler := consumer.NewControlEventHandler(log, accountsService, inboxRepo)

	// Initialize interest accrual scheduler
	accrualScheduler, err := accrual.NewScheduler(
		&cfg.Accrual,
		cfg.WorkerPool.Size,
		accountRepo,
		ledgerService,
		log,
	)
	if err != nil {
		log.Error("Failed to initialize accrual scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP server
	httpServer := api.NewServer(log, cfg, accountsService, ledgerService, transactionRepo)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start HTTP server in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ControlTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Consume(appCtx, controlEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox dispatcher in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxDispatcher.Start(appCtx)
	}()

	// Start interest accrual scheduler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		accrualScheduler.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	accrualScheduler.Shutdown()

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producer and consumer
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka event producer", "error", err)
	}
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Account Service shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Account Service shutdown completed successfully")
}

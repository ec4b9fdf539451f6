package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minhphan/garageflow/internal/client"
	"github.com/minhphan/garageflow/internal/config"
	httpadapter "github.com/minhphan/garageflow/internal/interfaces/http"
	"github.com/minhphan/garageflow/internal/report"
	"github.com/minhphan/garageflow/internal/repository"
	"github.com/minhphan/garageflow/internal/review"
	"github.com/minhphan/garageflow/internal/settlement"
	"github.com/minhphan/garageflow/internal/worker"
	"github.com/minhphan/garageflow/pkg/database"
	"github.com/minhphan/garageflow/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Local overrides for development; missing file is fine.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting checklist review workflow service",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	checklistRepo := repository.NewChecklistRepository(db.DB, logger)
	sessionRepo := repository.NewSessionRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// External collaborators
	backendClient := client.NewBackendClient(client.BackendConfig{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	}, logger)
	inventoryClient := client.NewInventoryClient(client.InventoryConfig{
		BaseURL: cfg.Inventory.BaseURL,
		APIKey:  cfg.Inventory.APIKey,
		Timeout: cfg.Inventory.Timeout,
	}, logger)
	paymentClient := client.NewPaymentClient(client.PaymentConfig{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
		Timeout: cfg.Payment.Timeout,
	}, logger)

	// Core workflow
	resolver := review.NewResolver(inventoryClient, logger)
	verifier := review.NewVerifier(inventoryClient, logger)

	settlementManager := settlement.NewManager(paymentClient, sessionRepo, historyRepo, settlement.Config{
		PollInterval:     cfg.Settlement.PollInterval,
		FailureThreshold: cfg.Settlement.FailureThreshold,
	}, logger)

	reviewService := review.NewService(
		backendClient,
		resolver,
		verifier,
		settlementManager,
		checklistRepo,
		historyRepo,
		logger,
	)

	exporter := report.NewExporter(sessionRepo, cfg.Report.OutputDir, logger)

	// Background workers: resume settlement polling, retry appointment
	// status updates that failed at approval time.
	workerManager := worker.NewManager(logger)
	workerManager.Register(settlementManager)
	workerManager.Register(worker.NewAppointmentReconciler(
		backendClient, checklistRepo, cfg.Settlement.ReconcileEvery, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	handlers := httpadapter.NewHandlers(reviewService, settlementManager, exporter, logger)
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	workerManager.StopAll()

	logger.Info("Server exited")
}

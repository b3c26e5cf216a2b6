package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/config"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/infrastructure/database"
	stripeGateway "github.com/jobdeck/billing/internal/infrastructure/gateway/stripe"
	grpcServer "github.com/jobdeck/billing/internal/infrastructure/grpc"
	httpServer "github.com/jobdeck/billing/internal/infrastructure/http"
	"github.com/jobdeck/billing/internal/usecase"
	"github.com/jobdeck/billing/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Build the plan catalog. A broken catalog must abort startup.
	entries, err := config.CatalogEntries(cfg.Plans)
	if err != nil {
		zapLogger.Fatal("Invalid plan configuration", zap.Error(err))
	}
	catalog, err := plan.NewCatalog(entries)
	if err != nil {
		zapLogger.Fatal("Invalid plan catalog", zap.Error(err))
	}

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories and services
	repos := database.NewRepositories(db, zapLogger)
	billingGateway := stripeGateway.NewGateway(zapLogger)
	lifecycle := usecase.NewLifecycleService(repos.Subscription, repos.Usage, billingGateway, catalog, zapLogger)
	usage := usecase.NewUsageService(repos.Subscription, repos.Usage, catalog, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, catalog, lifecycle, usage)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	// Shutdown servers
	if err := grpcSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finsight/internal/api"
	"finsight/internal/api/handlers"
	"finsight/internal/repository"
	"finsight/internal/service"
	"finsight/internal/storage"
	"finsight/pkg/config"
	"finsight/pkg/logger"
	"finsight/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting finsight service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize blob storage
	blobs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	defer blobs.Close()

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(db, appLogger)
	recordRepo := repository.NewRecordRepository(db, appLogger)

	// Initialize services
	visionService, err := service.NewVisionService(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize vision service", zap.Error(err))
	}
	defer visionService.Close()

	renderService := service.NewRenderService(appLogger)
	extractService := service.NewExtractService(visionService, appLogger)
	pipelineService := service.NewPipelineService(
		renderService,
		extractService,
		blobs,
		docRepo,
		recordRepo,
		cfg.Pipeline,
		cfg.Storage.AuditPages,
		appLogger,
	)
	docService := service.NewDocumentService(blobs, docRepo, recordRepo, appLogger)

	// Initialize handlers
	docHandler := handlers.NewDocumentHandler(docService, pipelineService, appLogger)

	// Setup router
	app := api.SetupRouter(docHandler, cfg.API.Key, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"finsight/internal/repository"
	"finsight/internal/service"
	"finsight/internal/storage"
	"finsight/pkg/config"
	"finsight/pkg/logger"
	"finsight/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// One-shot runner: processes a single already-uploaded document and prints
// the canonical result as JSON. Useful for reprocessing and debugging without
// going through the HTTP API.
func main() {
	idFlag := flag.String("id", "", "document ID to process")
	flag.Parse()

	documentID, err := uuid.Parse(*idFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: extract -id <document-uuid>")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	blobs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	defer blobs.Close()

	docRepo := repository.NewDocumentRepository(db, appLogger)
	recordRepo := repository.NewRecordRepository(db, appLogger)

	visionService, err := service.NewVisionService(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize vision service", zap.Error(err))
	}
	defer visionService.Close()

	pipeline := service.NewPipelineService(
		service.NewRenderService(appLogger),
		service.NewExtractService(visionService, appLogger),
		blobs,
		docRepo,
		recordRepo,
		cfg.Pipeline,
		cfg.Storage.AuditPages,
		appLogger,
	)

	result, err := pipeline.Run(ctx, documentID)
	if err != nil {
		appLogger.Fatal("Processing failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLogger.Fatal("Failed to encode result", zap.Error(err))
	}
	fmt.Println(string(out))
}

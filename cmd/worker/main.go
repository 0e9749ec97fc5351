/**
 * Categorization Worker - Main Entry Point
 *
 * Go worker that auto-categorizes uploaded files against an annotated
 * pattern corpus.
 *
 * Architecture:
 * - Redis-backed job queue (direct LIST consumer or Asynq, per QUEUE_DRIVER)
 * - Per-modality matching pipeline: image, PDF, JSON, audio transcript
 * - External extraction service with local Tesseract OCR fallback
 * - PostgreSQL persistence for results and job tracking
 * - Optional Qdrant feature index for image corpus shortlisting
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/categorize-worker/internal/config"
	"github.com/adverant/nexus/categorize-worker/internal/corpus"
	"github.com/adverant/nexus/categorize-worker/internal/engine"
	"github.com/adverant/nexus/categorize-worker/internal/extraction"
	"github.com/adverant/nexus/categorize-worker/internal/processor"
	"github.com/adverant/nexus/categorize-worker/internal/queue"
	"github.com/adverant/nexus/categorize-worker/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.nexus"); err != nil {
		log.Printf("Warning: .env.nexus not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Categorization Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, PostgreSQL=%s, Qdrant=%s, Workers=%d",
		cfg.RedisURL, cfg.DatabaseURL, cfg.QdrantURL, cfg.WorkerConcurrency)

	// Unified storage manager (PostgreSQL + optional Qdrant feature index)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	qdrantURL := cfg.QdrantURL
	if !cfg.QdrantEnabled {
		qdrantURL = ""
	}
	storageManager, err := storage.NewManager(cfg.DatabaseURL, qdrantURL, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized")

	// Annotation corpus reader
	corpusReader, err := corpus.NewReader(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize corpus reader: %v", err)
	}
	defer corpusReader.Close()
	log.Printf("Corpus reader initialized")

	// Extraction client with optional Tesseract OCR fallback
	var tesseract *extraction.TesseractOCR
	if cfg.TesseractEnabled {
		tesseract = extraction.NewTesseractOCR()
	}
	extractionClient := extraction.NewClient(cfg.ExtractionURL, tesseract)
	log.Printf("Extraction client initialized (url=%s, tesseractFallback=%v)",
		cfg.ExtractionURL, cfg.TesseractEnabled)

	// Matching engine
	matchEngine := engine.NewEngine(engine.WithScanWorkers(cfg.ScanWorkers))

	// Analysis processor
	proc, err := processor.NewAnalysisProcessor(&processor.ProcessorConfig{
		MaxFileSize: cfg.MaxFileSize,
		Extraction:  extractionClient,
		Corpus:      corpusReader,
		Storage:     storageManager,
		Engine:      matchEngine,
	})
	if err != nil {
		log.Fatalf("Failed to initialize analysis processor: %v", err)
	}
	log.Printf("Analysis processor initialized (scanWorkers=%d)", cfg.ScanWorkers)

	// Queue consumer, selected by QUEUE_DRIVER
	log.Printf("Connecting to Redis queue (driver=%s)...", cfg.QueueDriver)
	stopConsumer, err := startConsumer(cfg, proc)
	if err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}
	log.Printf("Queue consumer started with concurrency=%d", cfg.WorkerConcurrency)

	log.Printf("===========================================")
	log.Printf("Categorization Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (driver=%s)", cfg.QueueName, cfg.QueueDriver)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Corpus scan fan-out: %d", cfg.ScanWorkers)
	log.Printf("Analysis timeout: %dms", cfg.AnalysisTimeout)
	log.Printf("Modalities: image, pdf, json, audio")
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := stopConsumer(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// startConsumer starts the queue consumer for the configured driver and
// returns its stop function.
func startConsumer(cfg *config.Config, proc processor.AnalysisProcessorInterface) (func() error, error) {
	switch cfg.QueueDriver {
	case "asynq":
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.AnalysisTimeout),
		})
		if err != nil {
			return nil, err
		}
		if err := consumer.Start(context.Background()); err != nil {
			return nil, err
		}
		return func() error { return consumer.Stop(context.Background()) }, nil

	default:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.AnalysisTimeout),
		})
		if err != nil {
			return nil, err
		}
		if err := consumer.Start(); err != nil {
			return nil, err
		}
		return consumer.Stop, nil
	}
}

// Health check endpoint (optional - can be added via HTTP server)
func healthCheck(db *storage.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

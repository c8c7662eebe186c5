/**
 * OCR Worker - Main Entry Point
 *
 * Go worker that turns raw image bytes or rasterized PDF pages into
 * text through a pool of interchangeable OCR engines.
 *
 * Architecture:
 * - Asynq consumer for Redis-backed job queue
 * - Engine pool: Mistral OCR API, EasyOCR, Tesseract, RapidOCR
 * - Weighted quality scoring with ordered fallback between engines
 * - Cost-aware engine selection under a per-document budget
 * - Optional Redis result cache keyed by content hash
 *
 * Engine Cascade (default policy):
 * 1. EasyOCR - local, handwriting-capable, free
 * 2. Tesseract - local, mature, free
 * 3. RapidOCR - local, lightweight, free
 * 4. Mistral - cloud, highest quality, ~$0.01/page
 */

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/factlens/ocr-worker/internal/cache"
	"github.com/factlens/ocr-worker/internal/config"
	"github.com/factlens/ocr-worker/internal/ocr"
	"github.com/factlens/ocr-worker/internal/queue"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("OCR Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Primary=%s, Fallback=%v, Workers=%d",
		cfg.RedisURL, cfg.PrimaryEngine, cfg.FallbackEngines, cfg.MaxConcurrentRequests)

	// Initialize the optional result cache
	var resultCache *cache.ResultCache
	if cfg.CacheResults {
		log.Printf("Connecting to Redis result cache...")
		resultCache, err = cache.New(cfg.RedisURL, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		if err != nil {
			log.Fatalf("Failed to initialize result cache: %v", err)
		}
		defer resultCache.Close()
		log.Printf("Result cache initialized (ttl=%ds)", cfg.CacheTTLSeconds)
	}

	// Initialize the engine pool
	log.Printf("Initializing OCR engine pool...")
	factory := ocr.NewFactory(&ocr.FactoryConfig{
		PrimaryEngine:     cfg.PrimaryEngine,
		FallbackEngines:   cfg.FallbackEngines,
		EnableFallback:    cfg.EnableFallback,
		QualityThreshold:  cfg.QualityThreshold,
		CostOptimization:  cfg.CostOptimization,
		LocalPriority:     cfg.LocalPriority,
		BudgetPerDocument: cfg.BudgetPerDocument,
		Mistral: ocr.MistralEngineConfig{
			APIKey:  cfg.MistralAPIKey,
			Model:   cfg.MistralModel,
			BaseURL: cfg.MistralBaseURL,
			Timeout: time.Duration(cfg.MistralTimeout) * time.Second,
		},
		EasyOCR: ocr.EasyOCREngineConfig{
			Runner:    cfg.EasyOCRRunner,
			Languages: cfg.EasyOCRLanguages,
			GPU:       cfg.EasyOCRGPU,
		},
		Tesseract: ocr.TesseractEngineConfig{
			Variables: tesseractVariables(cfg),
		},
		RapidOCR: ocr.RapidOCREngineConfig{
			Runner: cfg.RapidOCRRunner,
		},
	}, resultCache)

	available := factory.AvailableEngines()
	if len(available) == 0 {
		log.Fatalf("No OCR engines available; check engine configuration")
	}
	log.Printf("Engine pool initialized: %s", strings.Join(available, ", "))

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.MaxConcurrentRequests,
		MaxFileSize:       cfg.MaxFileSize,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	}, factory)
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.MaxConcurrentRequests)

	// Start queue consumer
	if err := queueConsumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("OCR Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.MaxConcurrentRequests)
	log.Printf("Primary Engine: %s", cfg.PrimaryEngine)
	log.Printf("Fallback Chain: %s", strings.Join(cfg.FallbackEngines, " → "))
	log.Printf("Quality Threshold: %.2f", cfg.QualityThreshold)
	for name, status := range factory.EngineStatus() {
		log.Printf("Engine %-10s available=%-5v cost=%s", name, status.Available, formatCost(status.CostPerPage))
	}
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	queueConsumer.Stop()

	log.Printf("Shutdown complete")
}

func tesseractVariables(cfg *config.Config) map[string]string {
	vars := map[string]string{}
	if cfg.TesseractPSM != "" {
		vars["tessedit_pageseg_mode"] = cfg.TesseractPSM
	}
	return vars
}

func formatCost(costPerPage *float64) string {
	if costPerPage == nil || *costPerPage == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.3f/page", *costPerPage)
}

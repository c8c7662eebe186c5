/**
 * Queue Consumer for the OCR Worker
 *
 * Consumes OCR jobs from a Redis-backed queue via Asynq and routes each
 * payload through the engine factory's fallback pipeline. The factory
 * itself stays a plain in-process API; this consumer is the runnable
 * edge that document-processing collaborators enqueue into.
 */

package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
	"github.com/factlens/ocr-worker/internal/ocr"
)

// TaskTypeProcess is the asynq task type for OCR jobs.
const TaskTypeProcess = "ocr:process"

// TaskPayload is the job body enqueued by the document-processing
// service. Data is base64-encoded by encoding/json.
type TaskPayload struct {
	RequestID  string            `json:"requestId,omitempty"`
	Data       []byte            `json:"data"`
	Kind       string            `json:"kind,omitempty"` // "image" | "pdf_page"; sniffed when empty
	Language   string            `json:"language,omitempty"`
	PageNumber int               `json:"pageNumber,omitempty"`
	BBoxFormat string            `json:"bboxFormat,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

// Consumer handles OCR job consumption from the Redis queue
type Consumer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	factory *ocr.Factory
	config  *ConsumerConfig
	logger  *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxFileSize       int64
	ProcessingTimeout int64 // milliseconds; default 300000
}

// NewConsumer creates a new queue consumer bound to the engine factory
func NewConsumer(cfg *ConsumerConfig, factory *ocr.Factory) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if factory == nil {
		return nil, fmt.Errorf("factory is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("QueueConsumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:  server,
		mux:     mux,
		factory: factory,
		config:  cfg,
		logger:  logger,
	}

	mux.HandleFunc(TaskTypeProcess, consumer.handleProcess)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start() error {
	c.logger.Info("Starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("Queue consumer error", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
}

// handleProcess runs one OCR job through the fallback pipeline
func (c *Consumer) handleProcess(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	if len(payload.Data) == 0 {
		return fmt.Errorf("task payload carries no data: %w", asynq.SkipRetry)
	}

	if c.config.MaxFileSize > 0 && int64(len(payload.Data)) > c.config.MaxFileSize {
		return fmt.Errorf("payload exceeds maximum size (%d > %d): %w",
			len(payload.Data), c.config.MaxFileSize, asynq.SkipRetry)
	}

	kind, err := resolveKind(payload.Kind, payload.Data)
	if err != nil {
		// Malformed input never succeeds on retry.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	language := payload.Language
	if language == "" {
		language = "en"
	}

	c.logger.Info("Processing OCR job",
		"request", payload.RequestID,
		"kind", kind,
		"language", language,
		"size", len(payload.Data))

	timeout := 300000 * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := &ocr.Options{
		PageNumber: payload.PageNumber,
		BBoxFormat: payload.BBoxFormat,
		Extra:      payload.Options,
	}

	result, err := c.factory.ProcessWithFallback(processCtx, payload.Data, kind, language, opts)
	duration := time.Since(start)

	if err != nil {
		if ocrerrors.IsCode(err, ocrerrors.ErrorAllEnginesFailed) {
			c.logger.Error("OCR job failed on every engine",
				"request", payload.RequestID, "duration", duration, "error", err)
		} else {
			c.logger.Error("OCR job failed",
				"request", payload.RequestID, "duration", duration, "error", err)
		}
		return fmt.Errorf("OCR processing failed: %w", err)
	}

	c.logger.Info("OCR job complete",
		"request", payload.RequestID,
		"engine", result.EngineUsed,
		"confidence", result.Confidence,
		"duration", duration)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := task.ResultWriter().Write(resultJSON); err != nil {
		c.logger.Warn("Failed to write task result", "request", payload.RequestID, "error", err)
	}

	return nil
}

// resolveKind maps an explicit kind tag to its Kind, sniffing the
// payload's magic bytes when the tag is empty.
func resolveKind(tag string, data []byte) (ocr.Kind, error) {
	switch tag {
	case string(ocr.KindImage):
		return ocr.KindImage, nil
	case string(ocr.KindPDFPage):
		return ocr.KindPDFPage, nil
	case "":
		return detectKind(data)
	default:
		return "", ocrerrors.NewUnsupportedFormatError(tag)
	}
}

// detectKind classifies a payload from its magic bytes. Sources that
// lose content-type information (object stores, generic uploads) hand
// us untagged bytes.
func detectKind(data []byte) (ocr.Kind, error) {
	if len(data) < 4 {
		return "", ocrerrors.NewUnsupportedFormatError("payload too short")
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return ocr.KindPDFPage, nil
	}

	// PNG
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return ocr.KindImage, nil
	}

	// JPEG
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return ocr.KindImage, nil
	}

	// GIF
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return ocr.KindImage, nil
	}

	// WebP
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return ocr.KindImage, nil
	}

	// TIFF, both byte orders
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return ocr.KindImage, nil
	}

	// BMP
	if bytes.HasPrefix(data, []byte("BM")) {
		return ocr.KindImage, nil
	}

	return "", ocrerrors.NewUnsupportedFormatError("unknown magic bytes")
}

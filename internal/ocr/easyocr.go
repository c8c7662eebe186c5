/**
 * EasyOCR Engine - Broad-language, GPU-optional local OCR
 *
 * Wraps the easyocr runner through the subprocess bridge. Confidence is
 * the mean per-detection confidence; detections carry bounding boxes.
 * Moderate quality prior, wide language coverage, handwriting support.
 */

package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
)

const (
	easyOCREngineName    = "easyocr"
	easyOCRQualityRating = 0.85

	// Fixed priors for sub-scores the runner does not measure.
	easyOCRLanguagePrior  = 0.8
	easyOCRStructurePrior = 0.7

	easyOCRMaxFileSize = 50 * 1024 * 1024

	defaultEasyOCRRunner = "easyocr-runner"
)

var easyOCRAllLanguages = []string{
	"en", "fr", "de", "es", "it", "pt", "nl", "ru", "zh", "ja", "ko", "ar",
	"th", "vi", "hi", "bn", "ta", "te", "kn", "ml", "gu", "pa", "or", "as",
}

// EasyOCREngineConfig holds construction parameters.
type EasyOCREngineConfig struct {
	// Runner is the bridge binary name or path. Empty selects the
	// default runner name resolved from PATH.
	Runner string

	// Languages restricts the models the runner loads.
	Languages []string

	// GPU enables GPU inference in the runner.
	GPU bool
}

// EasyOCREngine implements Engine through the easyocr runner.
type EasyOCREngine struct {
	runner    string
	languages []string
	gpu       bool
	logger    *logging.Logger
}

// NewEasyOCREngine creates the easyocr engine. A runner missing from
// PATH is a configuration error; the factory treats it as a non-fatal
// absence.
func NewEasyOCREngine(cfg *EasyOCREngineConfig) (*EasyOCREngine, error) {
	configured := defaultEasyOCRRunner
	languages := []string{"en"}
	gpu := false
	if cfg != nil {
		if cfg.Runner != "" {
			configured = cfg.Runner
		}
		if len(cfg.Languages) > 0 {
			languages = cfg.Languages
		}
		gpu = cfg.GPU
	}

	runner := resolveRunner(configured)
	if runner == "" {
		return nil, ocrerrors.NewConfigurationError(easyOCREngineName,
			fmt.Sprintf("easyocr runner %q not found", configured), nil)
	}

	return &EasyOCREngine{
		runner:    runner,
		languages: languages,
		gpu:       gpu,
		logger:    logging.NewLogger("EasyOCREngine"),
	}, nil
}

// ProcessImage runs the easyocr runner on image bytes.
func (e *EasyOCREngine) ProcessImage(ctx context.Context, image []byte, language string, opts *Options) (*Result, error) {
	start := time.Now()

	png, err := normalizePNG(image)
	if err != nil {
		return nil, ocrerrors.NewProcessingError(easyOCREngineName, "image decode failed", err)
	}

	args := []string{"--languages", strings.Join(e.languages, ",")}
	if e.gpu {
		args = append(args, "--gpu")
	}

	detections, err := runBridge(ctx, e.runner, args, png)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ocrerrors.NewTimeoutError(easyOCREngineName, time.Since(start), err)
		}
		return nil, ocrerrors.NewProcessingError(easyOCREngineName, "easyocr processing failed", err)
	}

	text, confidence, confidences := joinDetections(detections)
	elapsed := time.Since(start)

	result := &Result{
		Text:           text,
		Confidence:     confidence,
		Language:       language,
		ProcessingTime: elapsed,
		EngineUsed:     easyOCREngineName,
		Metadata: map[string]interface{}{
			"num_detections": len(detections),
			"languages_used": e.languages,
		},
		WordConfidences: confidences,
		BBoxAnnotations: detectionAnnotations(detections),
	}
	result.EnsureQualityMetrics(easyOCRLanguagePrior, easyOCRStructurePrior)

	return result, nil
}

// ProcessPDFPage rasterizes the page and delegates to ProcessImage.
func (e *EasyOCREngine) ProcessPDFPage(ctx context.Context, page []byte, pageNumber int, language string, opts *Options) (*Result, error) {
	img, err := rasterizePDFPage(page)
	if err != nil {
		return nil, ocrerrors.NewProcessingError(easyOCREngineName, "PDF page rasterization failed", err)
	}

	result, err := e.ProcessImage(ctx, img, language, opts)
	if err != nil {
		return nil, err
	}

	result.Metadata["page_number"] = pageNumber
	result.Metadata["converted_from_pdf"] = true
	return result, nil
}

// SupportsLanguage reports language support from the static list.
func (e *EasyOCREngine) SupportsLanguage(language string) bool {
	return containsLanguage(easyOCRAllLanguages, language)
}

// EngineInfo returns the static capability description.
func (e *EasyOCREngine) EngineInfo() EngineInfo {
	return EngineInfo{
		Name:                easyOCREngineName,
		Type:                EngineTypeLocal,
		SupportedLanguages:  easyOCRAllLanguages,
		MaxFileSize:         easyOCRMaxFileSize,
		CostPerPage:         nil,
		RequiresAPIKey:      false,
		OfflineCapable:      true,
		SupportsBBox:        true,
		SupportsTables:      false,
		SupportsHandwriting: true,
		QualityRating:       easyOCRQualityRating,
	}
}

// IsAvailable reports whether the runner was resolved at construction.
func (e *EasyOCREngine) IsAvailable() bool {
	return e.runner != ""
}

// EstimateCost returns nil: local inference is free.
func (e *EasyOCREngine) EstimateCost(dataSize int64, pages int) *float64 {
	return nil
}

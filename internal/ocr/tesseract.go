/**
 * Tesseract Engine - Mature, widely-available local OCR
 *
 * Uses the gosseract cgo binding. A fresh client is created per
 * invocation, so concurrent requests never share native state.
 * Confidence is the mean per-word confidence from the native word
 * boxes; bounding boxes and handwriting are not part of this engine's
 * advertised capability set.
 */

package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
)

const (
	tesseractEngineName    = "tesseract"
	tesseractQualityRating = 0.80

	// Fixed priors for sub-scores tesseract does not measure.
	tesseractLanguagePrior  = 0.9
	tesseractStructurePrior = 0.8

	tesseractMaxFileSize = 100 * 1024 * 1024

	// Mean confidence to assume when no word boxes come back.
	tesseractFallbackConfidence = 0.7
)

var tesseractLanguages = []string{
	"en", "fr", "de", "es", "it", "pt", "nl", "ru", "zh", "ja", "ko", "ar",
	"hi", "bn", "ta", "te", "kn", "ml", "gu", "pa", "or", "as", "th", "vi",
}

// Tesseract wants ISO 639-2/T traineddata names, not the ISO 639-1
// codes the rest of the subsystem speaks.
var tesseractLanguageCodes = map[string]string{
	"en": "eng", "fr": "fra", "de": "deu", "es": "spa", "it": "ita",
	"pt": "por", "nl": "nld", "ru": "rus", "zh": "chi_sim", "ja": "jpn",
	"ko": "kor", "ar": "ara", "hi": "hin", "bn": "ben", "ta": "tam",
	"te": "tel", "kn": "kan", "ml": "mal", "gu": "guj", "pa": "pan",
	"or": "ori", "as": "asm", "th": "tha", "vi": "vie",
}

// TesseractEngineConfig holds construction parameters.
type TesseractEngineConfig struct {
	// Variables are tesseract configuration variables applied to each
	// client, e.g. "tessedit_pageseg_mode": "6".
	Variables map[string]string
}

// TesseractEngine implements Engine on top of gosseract.
type TesseractEngine struct {
	variables map[string]string
	logger    *logging.Logger
}

// NewTesseractEngine creates the tesseract engine. Availability of the
// native library is a build-environment property; construction itself
// cannot fail.
func NewTesseractEngine(cfg *TesseractEngineConfig) (*TesseractEngine, error) {
	variables := map[string]string{}
	if cfg != nil {
		for k, v := range cfg.Variables {
			variables[k] = v
		}
	}

	return &TesseractEngine{
		variables: variables,
		logger:    logging.NewLogger("TesseractEngine"),
	}, nil
}

// ProcessImage runs tesseract on image bytes.
func (e *TesseractEngine) ProcessImage(ctx context.Context, image []byte, language string, opts *Options) (*Result, error) {
	start := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if code, ok := tesseractLanguageCodes[strings.ToLower(language)]; ok {
		if err := client.SetLanguage(code); err != nil {
			return nil, ocrerrors.NewProcessingError(tesseractEngineName, "failed to set language", err)
		}
	}

	for k, v := range e.variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, ocrerrors.NewProcessingError(tesseractEngineName, "failed to set variable "+k, err)
		}
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, ocrerrors.NewProcessingError(tesseractEngineName, "failed to set image", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, ocrerrors.NewProcessingError(tesseractEngineName, "tesseract OCR failed", err)
	}
	text = strings.TrimSpace(text)

	wordConfidences := extractWordConfidences(client)
	confidence := tesseractFallbackConfidence
	if len(wordConfidences) > 0 {
		var sum float64
		for _, c := range wordConfidences {
			sum += c
		}
		confidence = sum / float64(len(wordConfidences))
	}

	elapsed := time.Since(start)

	result := &Result{
		Text:           text,
		Confidence:     confidence,
		Language:       language,
		ProcessingTime: elapsed,
		EngineUsed:     tesseractEngineName,
		Metadata: map[string]interface{}{
			"word_boxes": len(wordConfidences),
		},
		WordConfidences: wordConfidences,
	}
	result.EnsureQualityMetrics(tesseractLanguagePrior, tesseractStructurePrior)

	return result, nil
}

// ProcessPDFPage rasterizes the page and delegates to ProcessImage.
func (e *TesseractEngine) ProcessPDFPage(ctx context.Context, page []byte, pageNumber int, language string, opts *Options) (*Result, error) {
	img, err := rasterizePDFPage(page)
	if err != nil {
		return nil, ocrerrors.NewProcessingError(tesseractEngineName, "PDF page rasterization failed", err)
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
func (e *TesseractEngine) SupportsLanguage(language string) bool {
	return containsLanguage(tesseractLanguages, language)
}

// EngineInfo returns the static capability description.
func (e *TesseractEngine) EngineInfo() EngineInfo {
	return EngineInfo{
		Name:                tesseractEngineName,
		Type:                EngineTypeLocal,
		SupportedLanguages:  tesseractLanguages,
		MaxFileSize:         tesseractMaxFileSize,
		CostPerPage:         nil,
		RequiresAPIKey:      false,
		OfflineCapable:      true,
		SupportsBBox:        false,
		SupportsTables:      false,
		SupportsHandwriting: false,
		QualityRating:       tesseractQualityRating,
	}
}

// IsAvailable reports whether the engine was constructed. The native
// library is linked at build time; a missing tessdata install surfaces
// as a processing error, not an availability flip.
func (e *TesseractEngine) IsAvailable() bool {
	return e != nil
}

// EstimateCost returns nil: tesseract is free.
func (e *TesseractEngine) EstimateCost(dataSize int64, pages int) *float64 {
	return nil
}

func extractWordConfidences(client *gosseract.Client) []float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	confidences := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		confidences = append(confidences, b.Confidence/100.0)
	}
	return confidences
}

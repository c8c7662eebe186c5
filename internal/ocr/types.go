/**
 * OCR Types - Shared data structures for OCR operations
 *
 * Common types produced and consumed by every engine variant and by the
 * factory's selection and fallback pipeline.
 */

package ocr

import (
	"strings"
	"time"
	"unicode/utf8"
)

// EngineType classifies where an engine runs.
type EngineType string

const (
	EngineTypeCloud  EngineType = "cloud"
	EngineTypeLocal  EngineType = "local"
	EngineTypeHybrid EngineType = "hybrid"
)

// Kind tags the payload handed to ProcessWithFallback.
type Kind string

const (
	KindImage   Kind = "image"
	KindPDFPage Kind = "pdf_page"
)

// BoundingBox represents pixel coordinates of a recognized region.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BBoxAnnotation is a bounding-box-tagged span of recognized text,
// returned only by engines with spatial localization support.
type BBoxAnnotation struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

// QualityMetrics captures the normalized quality signals for one result.
//
// LanguageConfidence and StructurePreservation are usually not measurable
// from a backend's native output; engines fill them with a fixed,
// documented per-engine prior. That approximation is deliberate.
type QualityMetrics struct {
	OverallConfidence     float64       `json:"overall_confidence"`
	TextConfidence        float64       `json:"text_confidence"`
	LanguageConfidence    float64       `json:"language_confidence"`
	StructurePreservation float64       `json:"structure_preservation"`
	WordCount             int           `json:"word_count"`
	CharacterCount        int           `json:"character_count"`
	DetectedLanguage      string        `json:"detected_language"`
	ProcessingTime        time.Duration `json:"processing_time"`
}

// Result is the outcome of a single processing attempt. It is immutable
// once returned and never persisted by this subsystem.
type Result struct {
	Text            string                 `json:"text"`
	Confidence      float64                `json:"confidence"`
	Language        string                 `json:"language"`
	ProcessingTime  time.Duration          `json:"processing_time"`
	EngineUsed      string                 `json:"engine_used"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	BBoxAnnotations []BBoxAnnotation       `json:"bbox_annotations,omitempty"`
	WordConfidences []float64              `json:"word_confidences,omitempty"`
	QualityMetrics  *QualityMetrics        `json:"quality_metrics"`
	CostEstimate    *float64               `json:"cost_estimate,omitempty"`
}

// EnsureQualityMetrics populates QualityMetrics when the backend did not
// supply them. TextConfidence derives from the mean per-word confidence
// when present, otherwise from the overall confidence; the two
// unmeasurable sub-scores take the caller's per-engine priors.
func (r *Result) EnsureQualityMetrics(languagePrior, structurePrior float64) {
	if r.QualityMetrics != nil {
		return
	}

	textConfidence := r.Confidence
	if len(r.WordConfidences) > 0 {
		var sum float64
		for _, c := range r.WordConfidences {
			sum += c
		}
		textConfidence = sum / float64(len(r.WordConfidences))
	}

	r.QualityMetrics = &QualityMetrics{
		OverallConfidence:     r.Confidence,
		TextConfidence:        textConfidence,
		LanguageConfidence:    languagePrior,
		StructurePreservation: structurePrior,
		WordCount:             len(strings.Fields(r.Text)),
		CharacterCount:        utf8.RuneCountInString(r.Text),
		DetectedLanguage:      r.Language,
		ProcessingTime:        r.ProcessingTime,
	}
}

// EngineInfo describes an engine's static capabilities, fixed at
// construction. QualityRating is a documented prior, not measured per call.
type EngineInfo struct {
	Name                string     `json:"name"`
	Type                EngineType `json:"type"`
	SupportedLanguages  []string   `json:"supported_languages"`
	MaxFileSize         int64      `json:"max_file_size"`
	CostPerPage         *float64   `json:"cost_per_page"`
	RequiresAPIKey      bool       `json:"requires_api_key"`
	OfflineCapable      bool       `json:"offline_capable"`
	SupportsBBox        bool       `json:"supports_bbox"`
	SupportsTables      bool       `json:"supports_tables"`
	SupportsHandwriting bool       `json:"supports_handwriting"`
	QualityRating       float64    `json:"quality_rating"`
}

// EngineStatus is the operational snapshot of one pooled engine, exposed
// through Factory.EngineStatus for monitoring collaborators.
type EngineStatus struct {
	Available          bool       `json:"available"`
	Type               EngineType `json:"type"`
	SupportedLanguages []string   `json:"supported_languages"`
	QualityRating      float64    `json:"quality_rating"`
	CostPerPage        *float64   `json:"cost_per_page"`
	OfflineCapable     bool       `json:"offline_capable"`
}

/**
 * Quality Assessor - Normalizes heterogeneous engine quality signals
 *
 * Every backend computes confidence from whatever native signal it has
 * (per-detection averages, per-word averages, or a fixed heuristic).
 * The assessor collapses those ad-hoc signals into one comparable score
 * so the fallback pipeline can rank results across engines.
 */

package ocr

import (
	"fmt"
	"time"
)

// Sub-score weights for the quality score. Overall confidence dominates;
// structure preservation is the weakest signal because most engines only
// report a fixed prior for it.
const (
	weightOverallConfidence     = 0.4
	weightTextConfidence        = 0.3
	weightLanguageConfidence    = 0.2
	weightStructurePreservation = 0.1
)

const (
	// Results with fewer than this many words are usually garbage.
	shortTextWordCount = 5
	shortTextPenalty   = 0.7

	// Processing longer than this is a weak proxy for a struggling backend.
	slowProcessingTime    = 30 * time.Second
	slowProcessingPenalty = 0.9
)

// QualityAssessor turns an OCR result into a single comparable score.
type QualityAssessor struct{}

// NewQualityAssessor creates a quality assessor.
func NewQualityAssessor() *QualityAssessor {
	return &QualityAssessor{}
}

// Assess scores a result in [0, 1]. The score is a weighted sum of the
// four quality sub-scores, penalized for near-empty output and for very
// slow processing, then clamped.
func (a *QualityAssessor) Assess(result *Result) float64 {
	if result.QualityMetrics == nil {
		return clamp01(result.Confidence)
	}

	m := result.QualityMetrics

	score := m.OverallConfidence*weightOverallConfidence +
		m.TextConfidence*weightTextConfidence +
		m.LanguageConfidence*weightLanguageConfidence +
		m.StructurePreservation*weightStructurePreservation

	if m.WordCount < shortTextWordCount {
		score *= shortTextPenalty
	}

	if m.ProcessingTime > slowProcessingTime {
		score *= slowProcessingPenalty
	}

	return clamp01(score)
}

// Compare returns the best result by Assess. It fails on an empty input
// and returns a single input unchanged.
func (a *QualityAssessor) Compare(results []*Result) (*Result, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to compare")
	}

	if len(results) == 1 {
		return results[0], nil
	}

	best := results[0]
	bestScore := a.Assess(best)

	for _, result := range results[1:] {
		if score := a.Assess(result); score > bestScore {
			bestScore = score
			best = result
		}
	}

	return best, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

/**
 * Quality Assessor Tests
 *
 * Validates the weighted quality score, the short-text and slow-
 * processing penalties, the [0, 1] clamp, and result comparison.
 */

package ocr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsResult(overall, text, lang, structure float64, wordCount int, elapsed time.Duration) *Result {
	return &Result{
		Text:       "irrelevant",
		Confidence: overall,
		QualityMetrics: &QualityMetrics{
			OverallConfidence:     overall,
			TextConfidence:        text,
			LanguageConfidence:    lang,
			StructurePreservation: structure,
			WordCount:             wordCount,
			ProcessingTime:        elapsed,
		},
	}
}

func TestAssessWeightedScore(t *testing.T) {
	assessor := NewQualityAssessor()

	testCases := []struct {
		name     string
		result   *Result
		expected float64
	}{
		{
			name:     "perfect sub-scores",
			result:   metricsResult(1.0, 1.0, 1.0, 1.0, 10, time.Second),
			expected: 1.0,
		},
		{
			name:     "uniform sub-scores keep their value",
			result:   metricsResult(0.8, 0.8, 0.8, 0.8, 10, time.Second),
			expected: 0.8,
		},
		{
			name:     "overall confidence carries the largest weight",
			result:   metricsResult(1.0, 0.0, 0.0, 0.0, 10, time.Second),
			expected: 0.4,
		},
		{
			name:     "text confidence weight",
			result:   metricsResult(0.0, 1.0, 0.0, 0.0, 10, time.Second),
			expected: 0.3,
		},
		{
			name:     "language confidence weight",
			result:   metricsResult(0.0, 0.0, 1.0, 0.0, 10, time.Second),
			expected: 0.2,
		},
		{
			name:     "structure preservation weight",
			result:   metricsResult(0.0, 0.0, 0.0, 1.0, 10, time.Second),
			expected: 0.1,
		},
		{
			name:     "short text penalized",
			result:   metricsResult(0.8, 0.8, 0.8, 0.8, 4, time.Second),
			expected: 0.8 * 0.7,
		},
		{
			name:     "five words not penalized",
			result:   metricsResult(0.8, 0.8, 0.8, 0.8, 5, time.Second),
			expected: 0.8,
		},
		{
			name:     "slow processing penalized",
			result:   metricsResult(0.8, 0.8, 0.8, 0.8, 10, 31*time.Second),
			expected: 0.8 * 0.9,
		},
		{
			name:     "penalties compound",
			result:   metricsResult(0.8, 0.8, 0.8, 0.8, 2, 31*time.Second),
			expected: 0.8 * 0.7 * 0.9,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, assessor.Assess(tc.result), 1e-9)
		})
	}
}

func TestAssessBounds(t *testing.T) {
	assessor := NewQualityAssessor()

	// Out-of-range sub-scores from a misbehaving backend stay clamped.
	high := metricsResult(2.0, 2.0, 2.0, 2.0, 10, time.Second)
	assert.Equal(t, 1.0, assessor.Assess(high))

	low := metricsResult(-1.0, -1.0, -1.0, -1.0, 10, time.Second)
	assert.Equal(t, 0.0, assessor.Assess(low))
}

func TestAssessMonotonicInSubScores(t *testing.T) {
	assessor := NewQualityAssessor()
	base := assessor.Assess(metricsResult(0.5, 0.5, 0.5, 0.5, 10, time.Second))

	assert.Greater(t, assessor.Assess(metricsResult(0.6, 0.5, 0.5, 0.5, 10, time.Second)), base)
	assert.Greater(t, assessor.Assess(metricsResult(0.5, 0.6, 0.5, 0.5, 10, time.Second)), base)
	assert.Greater(t, assessor.Assess(metricsResult(0.5, 0.5, 0.6, 0.5, 10, time.Second)), base)
	assert.Greater(t, assessor.Assess(metricsResult(0.5, 0.5, 0.5, 0.6, 10, time.Second)), base)
}

func TestAssessWithoutMetrics(t *testing.T) {
	assessor := NewQualityAssessor()

	// No metrics means the raw engine confidence stands in, clamped.
	assert.InDelta(t, 0.65, assessor.Assess(&Result{Confidence: 0.65}), 1e-9)
	assert.Equal(t, 1.0, assessor.Assess(&Result{Confidence: 1.8}))
	assert.Equal(t, 0.0, assessor.Assess(&Result{Confidence: -0.2}))
}

func TestCompare(t *testing.T) {
	assessor := NewQualityAssessor()

	t.Run("empty input fails", func(t *testing.T) {
		_, err := assessor.Compare(nil)
		require.Error(t, err)
	})

	t.Run("single result returned unchanged", func(t *testing.T) {
		only := metricsResult(0.3, 0.3, 0.3, 0.3, 10, time.Second)
		best, err := assessor.Compare([]*Result{only})
		require.NoError(t, err)
		assert.Same(t, only, best)
	})

	t.Run("highest score wins", func(t *testing.T) {
		weak := metricsResult(0.4, 0.4, 0.4, 0.4, 10, time.Second)
		strong := metricsResult(0.9, 0.9, 0.9, 0.9, 10, time.Second)
		middling := metricsResult(0.6, 0.6, 0.6, 0.6, 10, time.Second)

		best, err := assessor.Compare([]*Result{weak, strong, middling})
		require.NoError(t, err)
		assert.Same(t, strong, best)
	})

	t.Run("penalty can flip the ranking", func(t *testing.T) {
		// Higher raw confidence but near-empty output loses to a
		// solid result with real text volume.
		sparse := metricsResult(0.9, 0.9, 0.9, 0.9, 2, time.Second)
		solid := metricsResult(0.7, 0.7, 0.7, 0.7, 50, time.Second)

		best, err := assessor.Compare([]*Result{sparse, solid})
		require.NoError(t, err)
		assert.Same(t, solid, best)
	})
}

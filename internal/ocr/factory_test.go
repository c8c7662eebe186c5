/**
 * Engine Factory Tests
 *
 * Exercises the selection policy (language filter, cost optimization,
 * local priority, configured primary) and the fallback pipeline with
 * scripted engines: early exit on a passing result, best-of on
 * exhaustion, and structured failure when every engine throws.
 */

package ocr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
)

// fakeEngine is a scripted Engine for pipeline tests. It returns a
// fixed result or error and counts invocations.
type fakeEngine struct {
	name        string
	engineType  EngineType
	languages   []string
	available   bool
	rating      float64
	costPerPage *float64

	result *Result
	err    error
	calls  int
}

func (e *fakeEngine) ProcessImage(ctx context.Context, image []byte, language string, opts *Options) (*Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *fakeEngine) ProcessPDFPage(ctx context.Context, page []byte, pageNumber int, language string, opts *Options) (*Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *fakeEngine) SupportsLanguage(language string) bool {
	return containsLanguage(e.languages, language)
}

func (e *fakeEngine) EngineInfo() EngineInfo {
	return EngineInfo{
		Name:               e.name,
		Type:               e.engineType,
		SupportedLanguages: e.languages,
		CostPerPage:        e.costPerPage,
		OfflineCapable:     e.engineType == EngineTypeLocal,
		QualityRating:      e.rating,
	}
}

func (e *fakeEngine) IsAvailable() bool { return e.available }

func (e *fakeEngine) EstimateCost(dataSize int64, pages int) *float64 {
	return estimateCostFromInfo(e.EngineInfo(), pages)
}

func scriptedResult(engine string, confidence float64, text string) *Result {
	words := 0
	for _, r := range text {
		if r == ' ' {
			words++
		}
	}
	if len(text) > 0 {
		words++
	}
	return &Result{
		Text:       text,
		Confidence: confidence,
		EngineUsed: engine,
		Metadata:   map[string]interface{}{},
		QualityMetrics: &QualityMetrics{
			OverallConfidence:     confidence,
			TextConfidence:        confidence,
			LanguageConfidence:    confidence,
			StructurePreservation: confidence,
			WordCount:             words,
			CharacterCount:        len(text),
			ProcessingTime:        time.Second,
		},
	}
}

func newTestFactory(cfg *FactoryConfig, engines ...*fakeEngine) *Factory {
	f := &Factory{
		config:    cfg,
		engines:   make(map[string]Engine),
		assessor:  NewQualityAssessor(),
		optimizer: NewCostOptimizer(cfg.BudgetPerDocument),
		logger:    logging.NewLogger("OCRFactory"),
	}
	for _, engine := range engines {
		f.register(engine.name, engine)
	}
	return f
}

func englishLocal(name string, rating float64) *fakeEngine {
	return &fakeEngine{
		name:       name,
		engineType: EngineTypeLocal,
		languages:  []string{"en"},
		available:  true,
		rating:     rating,
	}
}

func TestProcessWithFallbackLowQualityPrimary(t *testing.T) {
	// Primary clears processing but produces a weak, near-empty result;
	// the fallback engine produces a strong one. Each runs exactly once
	// and the fallback result is returned.
	primary := englishLocal("alpha", 0.85)
	primary.result = scriptedResult("alpha", 0.5, "ab")
	fallback := englishLocal("beta", 0.80)
	fallback.result = scriptedResult("beta", 0.9, "abcdef ghijk lmnop qrstu vwxyz")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, fallback)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", result.EngineUsed)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.NotEmpty(t, result.Metadata["request_id"])
}

func TestProcessWithFallbackBareConfidence(t *testing.T) {
	// Engines that report no quality metrics are scored on raw
	// confidence alone.
	primary := englishLocal("alpha", 0.85)
	primary.result = &Result{Text: "ab", Confidence: 0.5, EngineUsed: "alpha"}
	fallback := englishLocal("beta", 0.80)
	fallback.result = &Result{Text: "abcdef ghijk", Confidence: 0.9, EngineUsed: "beta"}

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, fallback)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", result.EngineUsed)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestProcessWithFallbackEarlyExit(t *testing.T) {
	primary := englishLocal("alpha", 0.85)
	primary.result = scriptedResult("alpha", 0.9, "plenty of words in this output here")
	second := englishLocal("beta", 0.80)
	second.result = scriptedResult("beta", 0.9, "never consulted")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, second)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.EngineUsed)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, second.calls)
}

func TestProcessWithFallbackPrimaryErrorRecovered(t *testing.T) {
	primary := englishLocal("alpha", 0.85)
	primary.err = ocrerrors.NewProcessingError("alpha", "backend crashed", nil)
	fallback := englishLocal("beta", 0.80)
	fallback.result = scriptedResult("beta", 0.9, "recovered output with enough words")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, fallback)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", result.EngineUsed)
}

func TestProcessWithFallbackAllFail(t *testing.T) {
	primary := englishLocal("alpha", 0.85)
	primary.err = ocrerrors.NewProcessingError("alpha", "backend crashed", nil)
	fallback := englishLocal("beta", 0.80)
	fallback.err = ocrerrors.NewProcessingError("beta", "backend crashed", nil)

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, fallback)

	_, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.Error(t, err)
	assert.True(t, ocrerrors.IsCode(err, ocrerrors.ErrorAllEnginesFailed))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestProcessWithFallbackExhaustionReturnsBest(t *testing.T) {
	// Every engine stays below threshold; the best candidate comes
	// back rather than an error.
	primary := englishLocal("alpha", 0.85)
	primary.result = scriptedResult("alpha", 0.4, "one two three four five six")
	fallback := englishLocal("beta", 0.80)
	fallback.result = scriptedResult("beta", 0.6, "one two three four five six")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta"},
		EnableFallback:   true,
		QualityThreshold: 0.9,
	}, primary, fallback)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", result.EngineUsed)
}

func TestProcessWithFallbackDisabled(t *testing.T) {
	t.Run("sub-threshold result returned silently", func(t *testing.T) {
		primary := englishLocal("alpha", 0.85)
		primary.result = scriptedResult("alpha", 0.4, "one two three four five six")
		idle := englishLocal("beta", 0.80)
		idle.result = scriptedResult("beta", 0.9, "never consulted")

		f := newTestFactory(&FactoryConfig{
			PrimaryEngine:    "alpha",
			FallbackEngines:  []string{"beta"},
			EnableFallback:   false,
			QualityThreshold: 0.7,
		}, primary, idle)

		result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
		require.NoError(t, err)
		assert.Equal(t, "alpha", result.EngineUsed)
		assert.Equal(t, 0, idle.calls)
	})

	t.Run("primary failure is terminal", func(t *testing.T) {
		primary := englishLocal("alpha", 0.85)
		primary.err = ocrerrors.NewProcessingError("alpha", "backend crashed", nil)

		f := newTestFactory(&FactoryConfig{
			PrimaryEngine:    "alpha",
			EnableFallback:   false,
			QualityThreshold: 0.7,
		}, primary)

		_, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
		require.Error(t, err)
		assert.True(t, ocrerrors.IsCode(err, ocrerrors.ErrorAllEnginesFailed))
	})
}

func TestProcessWithFallbackSkipsUnavailableFallback(t *testing.T) {
	primary := englishLocal("alpha", 0.85)
	primary.result = scriptedResult("alpha", 0.4, "one two three four five six")
	offline := englishLocal("beta", 0.80)
	offline.available = false
	last := englishLocal("gamma", 0.75)
	last.result = scriptedResult("gamma", 0.9, "strong output with enough words here")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		FallbackEngines:  []string{"beta", "gamma"},
		EnableFallback:   true,
		QualityThreshold: 0.7,
	}, primary, offline, last)

	result, err := f.ProcessWithFallback(context.Background(), []byte("img"), KindImage, "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "gamma", result.EngineUsed)
	assert.Equal(t, 0, offline.calls)
}

func TestSelectEngineLocalPriority(t *testing.T) {
	cloud := &fakeEngine{name: "mistral", engineType: EngineTypeCloud, languages: []string{"en"}, available: true, rating: 0.95}
	tess := englishLocal("tesseract", 0.80)
	easy := englishLocal("easyocr", 0.85)

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine: "mistral",
		LocalPriority: true,
	}, cloud, tess, easy)

	// Local preference order wins over registration order and the
	// configured primary.
	engine, err := f.SelectEngine(1024, 1, "en")
	require.NoError(t, err)
	assert.Equal(t, "easyocr", engine.EngineInfo().Name)
}

func TestSelectEnginePrimaryFallsThrough(t *testing.T) {
	cloud := &fakeEngine{name: "mistral", engineType: EngineTypeCloud, languages: []string{"en"}, available: true, rating: 0.95}
	tess := englishLocal("tesseract", 0.80)

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine: "tesseract",
	}, cloud, tess)

	engine, err := f.SelectEngine(1024, 1, "en")
	require.NoError(t, err)
	assert.Equal(t, "tesseract", engine.EngineInfo().Name)
}

func TestSelectEngineRegistrationOrderFallback(t *testing.T) {
	first := englishLocal("alpha", 0.85)
	second := englishLocal("beta", 0.80)

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine: "missing",
	}, first, second)

	engine, err := f.SelectEngine(1024, 1, "en")
	require.NoError(t, err)
	assert.Equal(t, "alpha", engine.EngineInfo().Name)
}

func TestSelectEngineLanguageWidening(t *testing.T) {
	english := englishLocal("alpha", 0.85)

	f := newTestFactory(&FactoryConfig{}, english)

	// Nothing supports Thai; rather than failing, the full available
	// set is considered.
	engine, err := f.SelectEngine(1024, 1, "th")
	require.NoError(t, err)
	assert.Equal(t, "alpha", engine.EngineInfo().Name)
}

func TestSelectEngineLanguageFilter(t *testing.T) {
	english := englishLocal("alpha", 0.85)
	chinese := &fakeEngine{name: "beta", engineType: EngineTypeLocal, languages: []string{"zh"}, available: true, rating: 0.75}

	f := newTestFactory(&FactoryConfig{}, english, chinese)

	engine, err := f.SelectEngine(1024, 1, "zh")
	require.NoError(t, err)
	assert.Equal(t, "beta", engine.EngineInfo().Name)
}

func TestSelectEngineNoneAvailable(t *testing.T) {
	down := englishLocal("alpha", 0.85)
	down.available = false

	f := newTestFactory(&FactoryConfig{}, down)

	_, err := f.SelectEngine(1024, 1, "en")
	require.Error(t, err)
	assert.True(t, ocrerrors.IsCode(err, ocrerrors.ErrorEngineUnavailable))
}

func TestProcessWithFallbackPDFPageDispatch(t *testing.T) {
	primary := englishLocal("alpha", 0.85)
	primary.result = scriptedResult("alpha", 0.9, "page text with enough words here")

	f := newTestFactory(&FactoryConfig{
		PrimaryEngine:    "alpha",
		QualityThreshold: 0.7,
		EnableFallback:   true,
	}, primary)

	result, err := f.ProcessWithFallback(context.Background(), []byte("%PDF-1.7"), KindPDFPage, "en", &Options{PageNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.EngineUsed)
	assert.Equal(t, 1, primary.calls)
}

func TestEngineStatus(t *testing.T) {
	up := englishLocal("alpha", 0.85)
	down := englishLocal("beta", 0.80)
	down.available = false

	f := newTestFactory(&FactoryConfig{}, up, down)

	status := f.EngineStatus()
	require.Len(t, status, 2)
	assert.True(t, status["alpha"].Available)
	assert.False(t, status["beta"].Available)
	assert.Equal(t, []string{"alpha"}, f.AvailableEngines())
}

/**
 * Engine Factory - Pool construction, selection policy, fallback pipeline
 *
 * The factory owns the pool of constructed engines and is the only
 * component the rest of the system calls. Selection weighs cost against
 * quality and locality; processing degrades gracefully through the
 * configured fallback chain and returns the best usable result.
 */

package ocr

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/factlens/ocr-worker/internal/cache"
	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
)

// Local engines in fixed preference order for the local-priority policy.
var localPreferenceOrder = []string{easyOCREngineName, tesseractEngineName, rapidOCREngineName}

// FactoryConfig enumerates the selection policy and per-engine settings.
// It is built once at process start and read-only afterwards.
type FactoryConfig struct {
	PrimaryEngine     string
	FallbackEngines   []string
	EnableFallback    bool
	QualityThreshold  float64
	CostOptimization  bool
	LocalPriority     bool
	BudgetPerDocument float64

	Mistral   MistralEngineConfig
	EasyOCR   EasyOCREngineConfig
	Tesseract TesseractEngineConfig
	RapidOCR  RapidOCREngineConfig
}

// Factory creates engines once and routes every request through the
// selection and fallback pipeline. Safe for concurrent use; the factory
// itself does not throttle in-flight requests.
type Factory struct {
	config    *FactoryConfig
	engines   map[string]Engine
	order     []string
	assessor  *QualityAssessor
	optimizer *CostOptimizer
	cache     *cache.ResultCache
	logger    *logging.Logger
}

// NewFactory constructs the factory and its engine pool. An engine that
// fails to construct (missing credential or missing native dependency)
// is logged and omitted from the pool, never fatal.
func NewFactory(cfg *FactoryConfig, resultCache *cache.ResultCache) *Factory {
	f := &Factory{
		config:    cfg,
		engines:   make(map[string]Engine),
		assessor:  NewQualityAssessor(),
		optimizer: NewCostOptimizer(cfg.BudgetPerDocument),
		cache:     resultCache,
		logger:    logging.NewLogger("OCRFactory"),
	}

	f.initializeEngines()

	f.logger.Info("OCR engine factory initialized",
		"engines", f.order,
		"primary", cfg.PrimaryEngine,
		"fallback", cfg.FallbackEngines,
		"threshold", cfg.QualityThreshold)

	return f
}

func (f *Factory) initializeEngines() {
	constructors := []struct {
		name  string
		build func() (Engine, error)
	}{
		{mistralEngineName, func() (Engine, error) { return NewMistralEngine(&f.config.Mistral) }},
		{easyOCREngineName, func() (Engine, error) { return NewEasyOCREngine(&f.config.EasyOCR) }},
		{tesseractEngineName, func() (Engine, error) { return NewTesseractEngine(&f.config.Tesseract) }},
		{rapidOCREngineName, func() (Engine, error) { return NewRapidOCREngine(&f.config.RapidOCR) }},
	}

	for _, c := range constructors {
		engine, err := c.build()
		if err != nil {
			f.logger.Warn("Engine not added to pool", "engine", c.name, "reason", err)
			continue
		}
		f.register(c.name, engine)
	}
}

// register adds an engine to the pool, preserving registration order.
func (f *Factory) register(name string, engine Engine) {
	f.engines[name] = engine
	f.order = append(f.order, name)
}

// Engine returns a pooled engine by name.
func (f *Factory) Engine(name string) (Engine, bool) {
	engine, ok := f.engines[name]
	return engine, ok
}

// AvailableEngines lists pooled engines that report availability, in
// registration order.
func (f *Factory) AvailableEngines() []string {
	names := make([]string, 0, len(f.order))
	for _, name := range f.order {
		if f.engines[name].IsAvailable() {
			names = append(names, name)
		}
	}
	return names
}

// SelectEngine picks an engine for a request according to the configured
// policy: language compatibility first (widened to all available engines
// when nothing matches), then cost optimization, local priority, the
// configured primary, and finally the first available engine.
func (f *Factory) SelectEngine(dataSize int64, pages int, language string) (Engine, error) {
	candidates := f.compatibleEngines(language)

	if len(candidates) == 0 {
		return nil, ocrerrors.NewEngineUnavailableError("", "no available OCR engines")
	}

	if f.config.CostOptimization {
		return f.optimizer.Select(candidates, dataSize, pages, f.config.QualityThreshold)
	}

	if f.config.LocalPriority {
		for _, name := range localPreferenceOrder {
			for _, engine := range candidates {
				if engine.EngineInfo().Name == name {
					return engine, nil
				}
			}
		}
	}

	if f.config.PrimaryEngine != "" {
		for _, engine := range candidates {
			if engine.EngineInfo().Name == f.config.PrimaryEngine {
				return engine, nil
			}
		}
	}

	return candidates[0], nil
}

// compatibleEngines returns available engines supporting the language,
// in registration order; when none support it the full available set is
// returned instead of failing outright.
func (f *Factory) compatibleEngines(language string) []Engine {
	matching := make([]Engine, 0, len(f.order))
	available := make([]Engine, 0, len(f.order))

	for _, name := range f.order {
		engine := f.engines[name]
		if !engine.IsAvailable() {
			continue
		}
		available = append(available, engine)
		if engine.SupportsLanguage(language) {
			matching = append(matching, engine)
		}
	}

	if len(matching) == 0 {
		f.logger.Warn("No engine supports requested language, widening to all available",
			"language", language)
		return available
	}
	return matching
}

// ProcessWithFallback routes a payload through engine selection, the
// primary attempt, and the configured fallback chain, returning the
// first result that clears the quality threshold or the best collected
// result on exhaustion.
//
// With fallback disabled, a sub-threshold result from the primary engine
// is returned silently - callers that care inspect QualityMetrics.
// Attempts within one request are strictly sequential; the caller bounds
// the whole call with its own context deadline.
func (f *Factory) ProcessWithFallback(ctx context.Context, data []byte, kind Kind, language string, opts *Options) (*Result, error) {
	requestID := uuid.NewString()

	if cached, ok := f.cacheLookup(ctx, data, kind, language); ok {
		f.logger.Info("Cache hit", "request", requestID, "engine", cached.EngineUsed)
		return cached, nil
	}

	primary, err := f.SelectEngine(int64(len(data)), 1, language)
	if err != nil {
		return nil, err
	}
	primaryName := primary.EngineInfo().Name

	f.logger.Info("Processing started",
		"request", requestID,
		"kind", kind,
		"language", language,
		"size", len(data),
		"engine", primaryName)

	attempted := []string{primaryName}
	candidates := make([]*Result, 0, 1+len(f.config.FallbackEngines))
	var lastErr error

	result, err := f.invoke(ctx, primary, data, kind, language, opts)
	if err != nil {
		// Treated as a quality failure: score 0, proceed to fallback.
		f.logger.Warn("Primary engine failed", "request", requestID, "engine", primaryName, "error", err)
		lastErr = err
	} else {
		score := f.assessor.Assess(result)
		tagRequest(result, requestID)
		if score >= f.config.QualityThreshold {
			f.logger.Info("Primary engine accepted",
				"request", requestID, "engine", primaryName, "score", score)
			f.cacheStore(ctx, data, kind, language, result)
			return result, nil
		}
		f.logger.Info("Primary engine below threshold, trying fallback",
			"request", requestID, "engine", primaryName, "score", score)
		candidates = append(candidates, result)
	}

	if !f.config.EnableFallback {
		if len(candidates) > 0 {
			return candidates[0], nil
		}
		return nil, ocrerrors.NewAllEnginesFailedError(attempted, lastErr)
	}

	for _, name := range f.config.FallbackEngines {
		engine, ok := f.engines[name]
		if !ok || !engine.IsAvailable() {
			continue
		}

		attempted = append(attempted, name)
		result, err := f.invoke(ctx, engine, data, kind, language, opts)
		if err != nil {
			f.logger.Warn("Fallback engine failed", "request", requestID, "engine", name, "error", err)
			lastErr = err
			continue
		}

		tagRequest(result, requestID)
		candidates = append(candidates, result)

		if score := f.assessor.Assess(result); score >= f.config.QualityThreshold {
			f.logger.Info("Fallback engine accepted",
				"request", requestID, "engine", name, "score", score)
			f.cacheStore(ctx, data, kind, language, result)
			return result, nil
		}
	}

	// Exhaustion: never discard a usable-if-imperfect result.
	if len(candidates) > 0 {
		best, err := f.assessor.Compare(candidates)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Returning best sub-threshold result",
			"request", requestID, "engine", best.EngineUsed, "score", f.assessor.Assess(best))
		return best, nil
	}

	f.logger.Error("All engines failed", "request", requestID, "attempted", attempted)
	return nil, ocrerrors.NewAllEnginesFailedError(attempted, lastErr)
}

func tagRequest(result *Result, requestID string) {
	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["request_id"] = requestID
}

// invoke dispatches one attempt to an engine by payload kind.
func (f *Factory) invoke(ctx context.Context, engine Engine, data []byte, kind Kind, language string, opts *Options) (*Result, error) {
	if kind == KindPDFPage {
		pageNumber := 1
		if opts != nil && opts.PageNumber > 0 {
			pageNumber = opts.PageNumber
		}
		return engine.ProcessPDFPage(ctx, data, pageNumber, language, opts)
	}
	return engine.ProcessImage(ctx, data, language, opts)
}

// EngineStatus reports an operational snapshot of every pooled engine.
func (f *Factory) EngineStatus() map[string]EngineStatus {
	status := make(map[string]EngineStatus, len(f.engines))
	for name, engine := range f.engines {
		info := engine.EngineInfo()
		status[name] = EngineStatus{
			Available:          engine.IsAvailable(),
			Type:               info.Type,
			SupportedLanguages: info.SupportedLanguages,
			QualityRating:      info.QualityRating,
			CostPerPage:        info.CostPerPage,
			OfflineCapable:     info.OfflineCapable,
		}
	}
	return status
}

func (f *Factory) cacheLookup(ctx context.Context, data []byte, kind Kind, language string) (*Result, bool) {
	if f.cache == nil {
		return nil, false
	}
	raw, ok := f.cache.Get(ctx, f.cache.Key(data, string(kind), language))
	if !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		f.logger.Warn("Discarding malformed cache entry", "error", err)
		return nil, false
	}
	return &result, true
}

func (f *Factory) cacheStore(ctx context.Context, data []byte, kind Kind, language string, result *Result) {
	if f.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	f.cache.Set(ctx, f.cache.Key(data, string(kind), language), raw)
}


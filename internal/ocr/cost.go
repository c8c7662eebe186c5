/**
 * Cost Optimizer - Cheapest engine meeting a quality floor and a budget
 *
 * Filters the pool to available engines whose quality prior clears the
 * threshold and whose estimated cost fits the per-document budget, then
 * ranks survivors by quality per dollar. The optimizer never hard-blocks
 * on cost or quality alone: when nothing survives filtering it falls
 * back permissively to the first available engine.
 */

package ocr

import (
	ocrerrors "github.com/factlens/ocr-worker/internal/errors"
	"github.com/factlens/ocr-worker/internal/logging"
)

// Floor applied to cost when ranking, so free engines do not divide by zero.
const minRankingCost = 0.001

// CostOptimizer selects the cheapest engine that meets quality requirements.
type CostOptimizer struct {
	budgetPerDocument float64
	logger            *logging.Logger
}

// NewCostOptimizer creates a cost optimizer with a per-document budget in USD.
func NewCostOptimizer(budgetPerDocument float64) *CostOptimizer {
	return &CostOptimizer{
		budgetPerDocument: budgetPerDocument,
		logger:            logging.NewLogger("CostOptimizer"),
	}
}

type costCandidate struct {
	engine  Engine
	cost    float64
	quality float64
}

// Select picks the most cost-effective engine from the candidates, in
// order. Candidates below the quality threshold or above budget are
// excluded; free engines count as zero cost.
func (o *CostOptimizer) Select(engines []Engine, dataSize int64, pages int, qualityThreshold float64) (Engine, error) {
	candidates := make([]costCandidate, 0, len(engines))

	for _, engine := range engines {
		if !engine.IsAvailable() {
			continue
		}

		info := engine.EngineInfo()
		if info.QualityRating < qualityThreshold {
			continue
		}

		cost := 0.0
		if estimate := engine.EstimateCost(dataSize, pages); estimate != nil {
			cost = *estimate
		}

		if cost > o.budgetPerDocument {
			o.logger.Debug("Engine excluded by budget",
				"engine", info.Name, "cost", cost, "budget", o.budgetPerDocument)
			continue
		}

		candidates = append(candidates, costCandidate{
			engine:  engine,
			cost:    cost,
			quality: info.QualityRating,
		})
	}

	if len(candidates) == 0 {
		// Permissive fallback: the system never hard-blocks on
		// cost/quality alone.
		for _, engine := range engines {
			if engine.IsAvailable() {
				o.logger.Warn("No engine met cost/quality constraints, using first available",
					"engine", engine.EngineInfo().Name)
				return engine, nil
			}
		}
		return nil, ocrerrors.NewEngineUnavailableError("", "no available OCR engines")
	}

	best := candidates[0]
	bestRatio := best.quality / maxFloat(best.cost, minRankingCost)
	for _, c := range candidates[1:] {
		if ratio := c.quality / maxFloat(c.cost, minRankingCost); ratio > bestRatio {
			bestRatio = ratio
			best = c
		}
	}

	o.logger.Debug("Cost-effective engine selected",
		"engine", best.engine.EngineInfo().Name, "cost", best.cost, "quality", best.quality)

	return best.engine, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

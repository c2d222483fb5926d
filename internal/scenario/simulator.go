// Package scenario answers what-if questions: scale demand, price, or
// capacity and rebuild the production plan under the changed assumptions,
// reporting the movement against the committed baseline. Results are
// ephemeral; only the scenario plan itself is persisted.
package scenario

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/optimizer"
	"github.com/optilens/demand-engine/internal/planner"
)

// Simulate reruns planning end to end under the request's multipliers.
//
// Demand scaling happens before the safety buffer so the scenario plan is
// rebuilt exactly the way the baseline was. The price multiplier touches
// revenue only, after optimization, so it never changes what gets produced.
// Baseline revenue prices the uncut recommendations; scenario revenue prices
// the capacity-cut plan. With all multipliers at 1 the scenario reproduces
// the baseline plan line for line (revenue can still drop if the baseline
// plan itself exceeds capacity).
func Simulate(
	req domain.ScenarioRequest,
	forecast []domain.ForecastRecord,
	baseline []domain.ProductionRecommendation,
	products []domain.Product,
	baselineCapacity int,
	buffer float64,
) (*domain.ScenarioResult, *domain.OptimizedPlan) {
	if req.DemandMultiplier == 0 {
		req.DemandMultiplier = 1
	}
	if req.PriceMultiplier == 0 {
		req.PriceMultiplier = 1
	}

	// Baseline side.
	baselineDemand := 0.0
	for _, f := range forecast {
		baselineDemand += f.PredictedDemand
	}
	baselineProduction := 0
	for _, r := range baseline {
		baselineProduction += r.RecommendedQty
	}
	baselineRevenue := planRevenue(baseline, products)
	baselineUtil := 0.0
	if baselineCapacity > 0 {
		baselineUtil = round1(float64(baselineProduction) / float64(baselineCapacity) * 100)
	}

	// Scenario side: scale the forecast, rebuild recommendations, re-optimize
	// against the adjusted capacity.
	scaled := make([]domain.ForecastRecord, len(forecast))
	copy(scaled, forecast)
	scenarioDemand := 0.0
	for i := range scaled {
		scaled[i].PredictedDemand *= req.DemandMultiplier
		scenarioDemand += scaled[i].PredictedDemand
	}

	scenarioCapacity := int(math.Round(float64(baselineCapacity) * (1 + req.CapacityChangePct/100)))

	scenarioRecs := planner.Recommend(scaled, buffer)
	plan := optimizer.Optimize(scenarioRecs, products, scenarioCapacity)

	plan.RevenueCaptured *= req.PriceMultiplier
	plan.RevenueLost *= req.PriceMultiplier
	for i := range plan.Records {
		plan.Records[i].RevenueCaptured *= req.PriceMultiplier
		plan.Records[i].RevenueLost *= req.PriceMultiplier
	}

	scenarioRevenue := plan.RevenueCaptured
	scenarioUtil := round1(float64(plan.TotalOptimized) / math.Max(float64(scenarioCapacity), 1) * 100)

	result := &domain.ScenarioResult{
		Request: req,
		Baseline: domain.ScenarioBlock{
			TotalDemand:     math.Round(baselineDemand),
			TotalProduction: baselineProduction,
			TotalRevenue:    math.Round(baselineRevenue),
			Capacity:        baselineCapacity,
			UtilizationPct:  baselineUtil,
		},
		Scenario: domain.ScenarioBlock{
			TotalDemand:     math.Round(scenarioDemand),
			TotalProduction: plan.TotalOptimized,
			TotalRevenue:    math.Round(scenarioRevenue),
			Capacity:        scenarioCapacity,
			UtilizationPct:  scenarioUtil,
		},
		Delta: domain.ScenarioDelta{
			DemandChange:         math.Round(scenarioDemand - baselineDemand),
			DemandChangePct:      pctChange(scenarioDemand, baselineDemand),
			ProductionChange:     plan.TotalOptimized - baselineProduction,
			ProductionChangePct:  pctChange(float64(plan.TotalOptimized), float64(baselineProduction)),
			RevenueChange:        math.Round(scenarioRevenue - baselineRevenue),
			RevenueChangePct:     pctChange(scenarioRevenue, baselineRevenue),
			CapacityChange:       scenarioCapacity - baselineCapacity,
			CapacityChangePct:    pctChange(float64(scenarioCapacity), float64(baselineCapacity)),
			UtilizationChange:    round1(scenarioUtil - baselineUtil),
			UtilizationChangePct: pctChange(scenarioUtil, baselineUtil),
		},
		Warning: plan.Warning,
	}
	return result, plan
}

// planRevenue prices the uncut recommendations at base cost plus the
// standard markup, imputing the median cost for uncataloged products.
func planRevenue(recs []domain.ProductionRecommendation, products []domain.Product) float64 {
	costByID := make(map[string]float64, len(products))
	var known []float64
	for _, p := range products {
		if _, ok := costByID[p.ProductID]; !ok {
			costByID[p.ProductID] = p.BaseCost
			known = append(known, p.BaseCost)
		}
	}
	median := medianOf(known)

	total := 0.0
	for _, r := range recs {
		cost, ok := costByID[r.ProductID]
		if !ok {
			cost = median
		}
		total += float64(r.RecommendedQty) * cost * optimizer.PriceMarkup
	}
	return total
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// pctChange reports (new-old)/old as a percentage to one decimal, guarding
// the denominator at 1 so zero baselines stay finite.
func pctChange(newVal, oldVal float64) float64 {
	return round1((newVal - oldVal) / math.Max(oldVal, 1) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

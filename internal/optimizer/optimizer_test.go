package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/domain"
)

func rec(prod, seg string, qty int) domain.ProductionRecommendation {
	return domain.ProductionRecommendation{ProductID: prod, Segment: seg, RecommendedQty: qty}
}

func TestOptimizeUncutWhenCapacityCoversPlan(t *testing.T) {
	recs := []domain.ProductionRecommendation{
		rec("P1", "near", 100),
		rec("P2", "far", 200),
	}
	products := []domain.Product{
		{ProductID: "P1", PriceBand: "low", BaseCost: 10},
		{ProductID: "P2", PriceBand: "premium", BaseCost: 20},
	}

	plan := Optimize(recs, products, 1000)
	require.Len(t, plan.Records, 2)
	assert.Equal(t, 100, plan.Records[0].OptimizedQty)
	assert.Equal(t, 200, plan.Records[1].OptimizedQty)
	assert.Equal(t, 300, plan.TotalOptimized)
	assert.Empty(t, plan.Warning)
	assert.Equal(t, 30.0, plan.UtilizationPct)
	assert.Equal(t, 0.0, plan.RevenueLost)
}

func TestOptimizeCutsLowMarginFirst(t *testing.T) {
	recs := []domain.ProductionRecommendation{
		rec("LOW", "near", 100),
		rec("PREM", "near", 100),
	}
	products := []domain.Product{
		{ProductID: "LOW", PriceBand: "low", BaseCost: 10},
		{ProductID: "PREM", PriceBand: "premium", BaseCost: 10},
	}

	plan := Optimize(recs, products, 150)
	require.Len(t, plan.Records, 2)
	require.Empty(t, plan.Warning)

	byID := map[string]domain.OptimizedPlanRecord{}
	for _, r := range plan.Records {
		byID[r.ProductID] = r
	}
	// Premium margin (2.0 * 10) beats low (1.0 * 10): premium keeps its
	// full quantity, low absorbs the cut.
	assert.Equal(t, 100, byID["PREM"].OptimizedQty)
	assert.Equal(t, 50, byID["LOW"].OptimizedQty)
	assert.Equal(t, 150, plan.TotalOptimized)
	assert.Equal(t, 100.0, plan.UtilizationPct)
}

func TestOptimizeRespectsBounds(t *testing.T) {
	recs := []domain.ProductionRecommendation{
		rec("P1", "near", 40),
		rec("P2", "near", 60),
		rec("P3", "near", 80),
	}
	products := []domain.Product{
		{ProductID: "P1", PriceBand: "mid", BaseCost: 12},
		{ProductID: "P2", PriceBand: "high", BaseCost: 8},
		{ProductID: "P3", PriceBand: "low", BaseCost: 20},
	}

	plan := Optimize(recs, products, 100)
	require.Empty(t, plan.Warning)
	for _, r := range plan.Records {
		assert.GreaterOrEqual(t, r.OptimizedQty, 0)
		assert.LessOrEqual(t, r.OptimizedQty, r.RecommendedQty)
	}
	assert.LessOrEqual(t, plan.TotalOptimized, 100)
}

func TestOptimizeMissingProductDefaults(t *testing.T) {
	recs := []domain.ProductionRecommendation{
		rec("KNOWN", "near", 10),
		rec("GHOST", "near", 10),
	}
	products := []domain.Product{
		{ProductID: "KNOWN", PriceBand: "high", BaseCost: 30},
	}

	plan := Optimize(recs, products, 1000)
	byID := map[string]domain.OptimizedPlanRecord{}
	for _, r := range plan.Records {
		byID[r.ProductID] = r
	}
	// Uncataloged lines take the mid band and the median known cost.
	assert.Equal(t, "mid", byID["GHOST"].PriceBand)
	assert.Equal(t, 1.3*30, byID["GHOST"].Margin)
	assert.Equal(t, 10.0*30*PriceMarkup, byID["GHOST"].RevenueCaptured)
}

func TestOptimizeRevenueAccounting(t *testing.T) {
	recs := []domain.ProductionRecommendation{rec("P1", "near", 100)}
	products := []domain.Product{{ProductID: "P1", PriceBand: "mid", BaseCost: 10}}

	plan := Optimize(recs, products, 60)
	require.Empty(t, plan.Warning)
	require.Len(t, plan.Records, 1)
	assert.Equal(t, 60, plan.Records[0].OptimizedQty)
	assert.Equal(t, 60.0*10*PriceMarkup, plan.RevenueCaptured)
	assert.Equal(t, 40.0*10*PriceMarkup, plan.RevenueLost)
}

func TestOptimizeEmptyPlan(t *testing.T) {
	plan := Optimize(nil, nil, 70000)
	assert.Empty(t, plan.Records)
	assert.Zero(t, plan.TotalOptimized)
}

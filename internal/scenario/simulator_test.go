package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/planner"
)

func forecastOf(records ...domain.ForecastRecord) []domain.ForecastRecord {
	return records
}

func fc(loc, region, prod, seg string, demand float64) domain.ForecastRecord {
	return domain.ForecastRecord{
		LocationID:      loc,
		Region:          region,
		ProductID:       prod,
		Segment:         seg,
		PredictedDemand: demand,
	}
}

func TestIdentityScenarioMatchesBaseline(t *testing.T) {
	forecast := forecastOf(
		fc("L1", "east", "P1", "near", 100),
		fc("L2", "west", "P2", "far", 50),
	)
	products := []domain.Product{
		{ProductID: "P1", PriceBand: "mid", BaseCost: 10},
		{ProductID: "P2", PriceBand: "high", BaseCost: 20},
	}
	baseline := planner.Recommend(forecast, 1.15)

	result, plan := Simulate(domain.ScenarioRequest{
		DemandMultiplier: 1, PriceMultiplier: 1, CapacityChangePct: 0,
	}, forecast, baseline, products, 70000, 1.15)

	// Capacity dwarfs the plan, so nothing is cut and the two sides agree
	// exactly.
	assert.Equal(t, result.Baseline.TotalDemand, result.Scenario.TotalDemand)
	assert.Equal(t, result.Baseline.TotalProduction, result.Scenario.TotalProduction)
	assert.Equal(t, result.Baseline.TotalRevenue, result.Scenario.TotalRevenue)
	assert.Equal(t, result.Baseline.Capacity, result.Scenario.Capacity)
	assert.Zero(t, result.Delta.DemandChange)
	assert.Zero(t, result.Delta.ProductionChange)
	assert.Zero(t, result.Delta.RevenueChange)
	assert.Zero(t, result.Delta.CapacityChange)
	assert.Empty(t, plan.Warning)
}

func TestScenarioCapacityAdjustment(t *testing.T) {
	forecast := forecastOf(fc("L1", "east", "P1", "near", 100))
	products := []domain.Product{{ProductID: "P1", PriceBand: "mid", BaseCost: 10}}
	baseline := planner.Recommend(forecast, 1.15)

	result, _ := Simulate(domain.ScenarioRequest{
		DemandMultiplier: 1.10, PriceMultiplier: 1.05, CapacityChangePct: 15,
	}, forecast, baseline, products, 70000, 1.15)

	// 70,000 * 1.15 = 80,500.
	assert.Equal(t, 80500, result.Scenario.Capacity)
	assert.Equal(t, 10500, result.Delta.CapacityChange)
	assert.Equal(t, 15.0, result.Delta.CapacityChangePct)
}

func TestScenarioDemandAndPriceMultipliers(t *testing.T) {
	forecast := forecastOf(fc("L1", "east", "P1", "near", 100))
	products := []domain.Product{{ProductID: "P1", PriceBand: "mid", BaseCost: 10}}
	baseline := planner.Recommend(forecast, 1.15) // 115 units

	result, plan := Simulate(domain.ScenarioRequest{
		DemandMultiplier: 1.10, PriceMultiplier: 1.05,
	}, forecast, baseline, products, 70000, 1.15)

	// Demand: 100 -> 110. Production: round(110*1.15) = 127, uncut.
	assert.Equal(t, 110.0, result.Scenario.TotalDemand)
	assert.Equal(t, 127, result.Scenario.TotalProduction)

	// Baseline revenue: 115 * 10 * 1.5 = 1725.
	assert.Equal(t, 1725.0, result.Baseline.TotalRevenue)
	// Scenario revenue: 127 * 10 * 1.5 * 1.05 = 2000.25, reported rounded.
	assert.Equal(t, 2000.0, result.Scenario.TotalRevenue)
	assert.InDelta(t, 2000.25, plan.RevenueCaptured, 1e-9)

	// (2000.25 - 1725) / 1725 * 100 = 15.956... -> 16.0.
	assert.Equal(t, 16.0, result.Delta.RevenueChangePct)
}

func TestScenarioZeroMultipliersDefaultToOne(t *testing.T) {
	forecast := forecastOf(fc("L1", "east", "P1", "near", 100))
	products := []domain.Product{{ProductID: "P1", PriceBand: "mid", BaseCost: 10}}
	baseline := planner.Recommend(forecast, 1.15)

	result, _ := Simulate(domain.ScenarioRequest{}, forecast, baseline, products, 70000, 1.15)
	assert.Equal(t, 1.0, result.Request.DemandMultiplier)
	assert.Equal(t, 1.0, result.Request.PriceMultiplier)
	assert.Zero(t, result.Delta.DemandChange)
}

func TestScenarioCapacityCut(t *testing.T) {
	forecast := forecastOf(fc("L1", "east", "P1", "near", 100))
	products := []domain.Product{{ProductID: "P1", PriceBand: "mid", BaseCost: 10}}
	baseline := planner.Recommend(forecast, 1.15) // 115 units

	result, plan := Simulate(domain.ScenarioRequest{
		DemandMultiplier: 1, PriceMultiplier: 1, CapacityChangePct: -50,
	}, forecast, baseline, products, 100, 1.15)

	require.Empty(t, plan.Warning)
	// Capacity halves to 50; production cannot exceed it.
	assert.Equal(t, 50, result.Scenario.Capacity)
	assert.LessOrEqual(t, result.Scenario.TotalProduction, 50)
	assert.Equal(t, 100.0, result.Scenario.UtilizationPct)
	assert.Negative(t, result.Delta.ProductionChange)
}

func TestPctChangeGuardsZeroBaseline(t *testing.T) {
	assert.Equal(t, 500.0, pctChange(5, 0))
	assert.Equal(t, 10.0, pctChange(110, 100))
}

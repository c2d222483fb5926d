package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/domain"
)

func fc(loc, region, prod, seg string, demand float64) domain.ForecastRecord {
	return domain.ForecastRecord{
		LocationID:      loc,
		Region:          region,
		ProductID:       prod,
		Segment:         seg,
		PredictedDemand: demand,
	}
}

func TestRecommendAppliesSafetyBuffer(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L1", "east", "P1", "near", 60),
		fc("L2", "west", "P1", "near", 40),
		fc("L1", "east", "P2", "far", 10),
	}

	recs := Recommend(forecast, 1.15)
	require.Len(t, recs, 2)

	// 100 * 1.15 = 115, 10 * 1.15 = 11.5 rounds to 12.
	assert.Equal(t, domain.ProductionRecommendation{ProductID: "P1", Segment: "near", RecommendedQty: 115}, recs[0])
	assert.Equal(t, domain.ProductionRecommendation{ProductID: "P2", Segment: "far", RecommendedQty: 12}, recs[1])
}

func TestAllocateProportionalToRegionDemand(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L1", "east", "P1", "near", 75),
		fc("L2", "west", "P1", "near", 25),
	}
	recs := Recommend(forecast, 1.15) // 115 units

	allocs := Allocate(forecast, recs)
	require.Len(t, allocs, 2)

	byRegion := map[string]int{}
	for _, a := range allocs {
		byRegion[a.Region] = a.AllocatedUnits
	}
	// 0.75 * 115 = 86.25 -> 86, 0.25 * 115 = 28.75 -> 29.
	assert.Equal(t, 86, byRegion["east"])
	assert.Equal(t, 29, byRegion["west"])
}

func TestAllocateRoundsSharesIndependently(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L1", "east", "P1", "near", 1),
		fc("L2", "west", "P1", "near", 1),
		fc("L3", "north", "P1", "near", 1),
	}
	recs := []domain.ProductionRecommendation{
		{ProductID: "P1", Segment: "near", RecommendedQty: 10},
	}

	allocs := Allocate(forecast, recs)
	require.Len(t, allocs, 3)
	total := 0
	for _, a := range allocs {
		assert.Equal(t, 3, a.AllocatedUnits) // each share is 10/3 -> 3
		total += a.AllocatedUnits
	}
	// Independent rounding may not preserve the recommendation total.
	assert.Equal(t, 9, total)
}

func TestStockRisksFlagOnlyShortages(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L1", "east", "P1", "near", 100),
		fc("L2", "west", "P1", "near", 20),
	}
	inventory := []domain.InventorySnapshot{
		{LocationID: "L1", ProductID: "P1", StockLevel: 40},
		{LocationID: "L2", ProductID: "P1", StockLevel: 500},
	}
	products := []domain.Product{
		{ProductID: "P1", BaseCost: 10},
	}

	risks := StockRisks(forecast, inventory, products)
	require.Len(t, risks, 1)

	r := risks[0]
	assert.Equal(t, "L1", r.LocationID)
	assert.Equal(t, 60.0, r.Shortage)
	// 60 / 100.001 rounds to 0.6.
	assert.Equal(t, 0.6, r.RiskProbability)
	// 60 units * cost 10 * markup 1.5.
	assert.Equal(t, 900.0, r.RevenueOpportunity)
}

func TestStockRisksMissingInventoryMeansEmpty(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L9", "east", "P1", "near", 30),
	}

	risks := StockRisks(forecast, nil, nil)
	require.Len(t, risks, 1)
	assert.Equal(t, 0.0, risks[0].StockLevel)
	assert.Equal(t, 30.0, risks[0].Shortage)
	assert.Equal(t, 1.0, risks[0].RiskProbability)
	// Unknown product: flagged, but no revenue attached.
	assert.Equal(t, 0.0, risks[0].RevenueOpportunity)
}

func TestStockRisksTinyShortageFiltered(t *testing.T) {
	forecast := []domain.ForecastRecord{
		fc("L1", "east", "P1", "near", 0.0001),
	}

	risks := StockRisks(forecast, nil, nil)
	require.Empty(t, risks) // shortage rounds to 0
}

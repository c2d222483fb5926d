package coldstart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/domain"
)

func catalog() []domain.Product {
	return []domain.Product{
		{ProductID: "P1", FrameType: "full-rim", LensType: "single vision", PriceBand: "low", BaseCost: 10},
		{ProductID: "P2", FrameType: "full-rim", LensType: "blue cut", PriceBand: "mid", BaseCost: 15},
		{ProductID: "P3", FrameType: "half-rim", LensType: "progressive", PriceBand: "high", BaseCost: 25},
		{ProductID: "P4", FrameType: "rimless", LensType: "progressive", PriceBand: "premium", BaseCost: 40},
		{ProductID: "P5", FrameType: "full-rim", LensType: "progressive", PriceBand: "premium", BaseCost: 38},
		{ProductID: "P6", FrameType: "rimless", LensType: "single vision", PriceBand: "mid", BaseCost: 18},
	}
}

func forecastFor(prods map[string]float64) []domain.ForecastRecord {
	var out []domain.ForecastRecord
	for id, demand := range prods {
		out = append(out, domain.ForecastRecord{
			Region:          "east",
			Segment:         "near",
			ProductID:       id,
			PredictedDemand: demand,
		})
	}
	return out
}

func TestNewPredictorRejectsEmptyCatalog(t *testing.T) {
	_, err := NewPredictor(nil, nil)
	assert.Error(t, err)
}

func TestNearestReturnsExactMatchFirst(t *testing.T) {
	p, err := NewPredictor(catalog(), nil)
	require.NoError(t, err)

	neighbors := p.nearest(domain.NewProductQuery{
		FrameType: "rimless", LensType: "progressive", PriceBand: "premium",
	}, 5)
	require.Len(t, neighbors, 5)
	assert.Equal(t, "P4", neighbors[0].ProductID)
	assert.InDelta(t, 0.0, neighbors[0].Distance, 1e-9)
	// Distances are non-decreasing.
	for i := 1; i < len(neighbors); i++ {
		assert.GreaterOrEqual(t, neighbors[i].Distance, neighbors[i-1].Distance)
	}
}

func TestNeighborCountCappedByCatalog(t *testing.T) {
	small := catalog()[:3]
	p, err := NewPredictor(small, nil)
	require.NoError(t, err)

	estimate, err := p.Predict(domain.NewProductQuery{
		FrameType: "full-rim", LensType: "blue cut", PriceBand: "mid",
	})
	require.NoError(t, err)
	assert.Len(t, estimate.SimilarProducts, 3)
}

func TestPredictAveragesNeighborForecasts(t *testing.T) {
	fc := forecastFor(map[string]float64{
		"P1": 10, "P2": 20, "P3": 30, "P4": 40, "P5": 50, "P6": 60,
	})
	p, err := NewPredictor(catalog(), fc)
	require.NoError(t, err)

	estimate, err := p.Predict(domain.NewProductQuery{
		FrameType: "full-rim", LensType: "blue cut", PriceBand: "mid",
	})
	require.NoError(t, err)
	require.Len(t, estimate.ByRegion, 1)
	assert.Equal(t, "east", estimate.ByRegion[0].Region)
	assert.Equal(t, "near", estimate.ByRegion[0].Segment)
	assert.Positive(t, estimate.TotalDemand)
}

func TestPredictFallsBackToGlobalAverage(t *testing.T) {
	// Forecast only covers products that are never neighbors: use a
	// forecast for an id outside the catalog.
	fc := forecastFor(map[string]float64{"GHOST": 12})
	p, err := NewPredictor(catalog(), fc)
	require.NoError(t, err)

	estimate, err := p.Predict(domain.NewProductQuery{
		FrameType: "full-rim", LensType: "blue cut", PriceBand: "mid",
	})
	require.NoError(t, err)
	require.Len(t, estimate.ByRegion, 1)
	assert.Positive(t, estimate.ByRegion[0].PredictedDemand)
}

func TestBandAdjustmentDirection(t *testing.T) {
	p, err := NewPredictor(catalog(), nil)
	require.NoError(t, err)

	neighbors := []domain.SimilarProduct{
		{PriceBand: "mid"}, {PriceBand: "mid"},
	}
	// Premium (3) vs mid average (1): +2 steps of 5%.
	assert.InDelta(t, 1.10, p.bandAdjustment("premium", neighbors), 1e-9)
	// Low (0) vs mid average: -5%.
	assert.InDelta(t, 0.95, p.bandAdjustment("low", neighbors), 1e-9)
	// Unknown band counts as mid.
	assert.InDelta(t, 1.0, p.bandAdjustment("mystery", neighbors), 1e-9)
	// No rankable neighbors leaves demand untouched.
	assert.Equal(t, 1.0, p.bandAdjustment("premium", nil))
}

func TestCatalogHashIsOrderInsensitive(t *testing.T) {
	a := catalog()
	b := []domain.Product{a[3], a[0], a[5], a[1], a[4], a[2]}
	assert.Equal(t, CatalogHash(a), CatalogHash(b))

	changed := catalog()
	changed[0].PriceBand = "premium"
	assert.NotEqual(t, CatalogHash(a), CatalogHash(changed))
}

func TestCosineDistanceZeroVectorGuard(t *testing.T) {
	assert.Equal(t, 1.0, cosineDistance([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 0.0, cosineDistance([]float64{1, 0}, []float64{1, 0}), 1e-12)
}

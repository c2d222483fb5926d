package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/cache"
	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/store"
)

// seedInputs writes a small but trainable input dataset: two series with 60
// days of history each.
func seedInputs(t *testing.T, dir string) {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var orders strings.Builder
	orders.WriteString("date,location_id,product_id,region,segment,quantity,price\n")
	for i := 0; i < 60; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		fmt.Fprintf(&orders, "%s,L1,P1,east,near,%d,100\n", d, 40+i%7)
		fmt.Fprintf(&orders, "%s,L2,P2,west,far,%d,150\n", d, 20+i%5)
	}
	writeInput(t, dir, "orders.csv", orders.String())

	writeInput(t, dir, "products.csv",
		"product_id,frame_type,lens_type,color,price_band,base_cost\n"+
			"P1,full-rim,single vision,black,mid,10\n"+
			"P2,rimless,progressive,gold,premium,40\n")
	writeInput(t, dir, "locations.csv",
		"location_id,region,tier,avg_footfall\n"+
			"L1,east,metro,1500\n"+
			"L2,west,tier2,600\n")
	writeInput(t, dir, "inventory.csv",
		"location_id,product_id,stock_level,lead_time_days\n"+
			"L1,P1,10,3\n"+
			"L2,P2,100000,5\n")
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func newTestService(t *testing.T) (*PlanningService, string) {
	t.Helper()
	dir := t.TempDir()
	seedInputs(t, dir)

	cfg := &config.Config{
		App: config.AppConfig{DataDir: dir, WorkerCount: 2},
		Planning: config.PlanningConfig{
			HorizonDays:    7,
			ValidationDays: 14,
			DailyCapacity:  10000,
			ProductionDays: 7,
			SafetyBuffer:   1.15,
		},
	}

	csvStore := store.NewCSVStore(dir)
	return NewPlanningService(cfg, csvStore, csvStore, cache.NewNoopPredictionCache(), cache.NewNoopSummaryCache(), nil), dir
}

func TestPipelineEndToEnd(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	report, err := svc.RunForecast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Series)
	assert.Equal(t, 14, report.Records) // 2 series x 7 days
	assert.FileExists(t, filepath.Join(dir, store.ForecastArtifact))

	planReport, err := svc.RunPlanning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, planReport.Recommendations)
	assert.Positive(t, planReport.TotalRecommended)
	// L1 holds almost no stock against a week of demand.
	assert.Positive(t, planReport.StockRisks)
	assert.FileExists(t, filepath.Join(dir, store.ProductionArtifact))
	assert.FileExists(t, filepath.Join(dir, store.AllocationArtifact))
	assert.FileExists(t, filepath.Join(dir, store.StockRiskArtifact))

	plan, err := svc.RunOptimization(ctx)
	require.NoError(t, err)
	assert.Empty(t, plan.Warning)
	assert.Equal(t, 70000, plan.Capacity)
	// Weekly demand is far below capacity, so nothing is cut.
	assert.Equal(t, plan.TotalRecommended, plan.TotalOptimized)
	assert.FileExists(t, filepath.Join(dir, store.OptimizedArtifact))
}

func TestRunPlanningWithoutForecastFails(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RunPlanning(context.Background())
	assert.True(t, domain.IsNotFound(err))
}

func TestRunScenarioIdentity(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunForecast(ctx)
	require.NoError(t, err)
	_, err = svc.RunPlanning(ctx)
	require.NoError(t, err)

	result, err := svc.RunScenario(ctx, domain.ScenarioRequest{
		DemandMultiplier: 1, PriceMultiplier: 1, CapacityChangePct: 0,
	})
	require.NoError(t, err)
	assert.Zero(t, result.Delta.ProductionChange)
	assert.Zero(t, result.Delta.RevenueChange)
	assert.FileExists(t, filepath.Join(dir, store.ScenarioArtifact))
}

func TestPredictNewProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunForecast(ctx)
	require.NoError(t, err)

	estimate, err := svc.PredictNewProduct(ctx, domain.NewProductQuery{
		FrameType: "full-rim", LensType: "single vision", PriceBand: "mid",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, estimate.SimilarProducts)
	assert.NotEmpty(t, estimate.ByRegion)
	assert.Positive(t, estimate.TotalDemand)
}

func TestConfidenceSummaryGroupsPerProductSegment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunForecast(ctx)
	require.NoError(t, err)

	summaries, err := svc.ConfidenceSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, 7, s.Rows)
		assert.GreaterOrEqual(t, s.MaxConfidence, s.MinConfidence)
		assert.GreaterOrEqual(t, s.AvgConfidence, s.MinConfidence)
		assert.LessOrEqual(t, s.AvgConfidence, s.MaxConfidence)
	}
	// Sorted ascending by average confidence.
	assert.LessOrEqual(t, summaries[0].AvgConfidence, summaries[1].AvgConfidence)
}

func TestCapacityPlanRestoresCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunForecast(ctx)
	require.NoError(t, err)
	_, err = svc.RunPlanning(ctx)
	require.NoError(t, err)
	_, err = svc.RunOptimization(ctx)
	require.NoError(t, err)

	plan, err := svc.CapacityPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70000, plan.Capacity)
	assert.NotEmpty(t, plan.Records)
}

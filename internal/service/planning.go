// Package service orchestrates the planning pipeline: it loads input
// tables, runs the forecasting, planning, optimization, scenario, and
// cold-start stages, and persists their artifacts. HTTP handlers and CLI
// commands are thin wrappers over this package.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/optilens/demand-engine/internal/cache"
	"github.com/optilens/demand-engine/internal/coldstart"
	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/demand"
	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/forecast"
	"github.com/optilens/demand-engine/internal/optimizer"
	"github.com/optilens/demand-engine/internal/planner"
	"github.com/optilens/demand-engine/internal/scenario"
	"github.com/optilens/demand-engine/internal/storage"
	"github.com/optilens/demand-engine/internal/store"
	"github.com/optilens/demand-engine/internal/worker"
	"github.com/optilens/demand-engine/pkg/logger"
)

// PlanningService runs the planning pipeline stages and serves read-side
// queries over their artifacts.
type PlanningService struct {
	cfg       *config.Config
	inputs    store.InputSource
	artifacts store.ArtifactStore
	estimates cache.PredictionCache
	summaries cache.SummaryCache
	publisher storage.Publisher
	pool      *worker.Pool

	mu        sync.Mutex
	predictor *coldstart.Predictor
}

func NewPlanningService(
	cfg *config.Config,
	inputs store.InputSource,
	artifacts store.ArtifactStore,
	estimates cache.PredictionCache,
	summaries cache.SummaryCache,
	publisher storage.Publisher,
) *PlanningService {
	return &PlanningService{
		cfg:       cfg,
		inputs:    inputs,
		artifacts: artifacts,
		estimates: estimates,
		summaries: summaries,
		publisher: publisher,
		pool:      worker.NewPool(cfg.App.WorkerCount),
	}
}

// ForecastReport summarizes a forecast run.
type ForecastReport struct {
	Series         int       `json:"series"`
	Records        int       `json:"records"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	RMSE           float64   `json:"rmse"`
	MAE            float64   `json:"mae"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// PlanningReport summarizes a planning run.
type PlanningReport struct {
	Recommendations  int     `json:"recommendations"`
	Allocations      int     `json:"allocations"`
	StockRisks       int     `json:"stock_risks"`
	TotalRecommended int     `json:"total_recommended"`
	TotalShortage    float64 `json:"total_shortage"`
	RevenueAtRisk    float64 `json:"revenue_at_risk"`
}

// RunForecast trains the model on full order history and writes the
// next-horizon forecast artifact.
func (s *PlanningService) RunForecast(ctx context.Context) (*ForecastReport, error) {
	start := time.Now()

	orders, err := s.inputs.LoadOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	products, err := s.inputs.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	locations, err := s.inputs.LoadLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}

	ds := demand.Build(orders, products, locations)
	logger.Log.Info().
		Int("orders", len(orders)).
		Int("series", len(ds.Keys)).
		Int("rows", len(ds.Rows)).
		Msg("demand history aggregated")

	// Training is CPU-bound; keep it off the caller's goroutine.
	var model *forecast.Model
	err = s.pool.Run(ctx, []worker.Job{{Name: "train-model", Run: func(ctx context.Context) error {
		var trainErr error
		model, trainErr = forecast.Train(ds, s.cfg.Planning.ValidationDays, forecast.DefaultConfig())
		return trainErr
	}}})
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	logger.Log.Info().
		Float64("rmse", model.RMSE).
		Float64("mae", model.MAE).
		Int("train_rows", model.TrainRows).
		Int("validation_rows", model.ValidationRows).
		Msg("model trained")

	records, err := forecast.Forecast(ctx, ds, model, s.cfg.Planning.HorizonDays, s.cfg.App.WorkerCount)
	if err != nil {
		return nil, fmt.Errorf("generate forecast: %w", err)
	}

	if err := s.artifacts.SaveForecast(ctx, records); err != nil {
		return nil, fmt.Errorf("save forecast: %w", err)
	}
	s.publish(ctx, store.ForecastArtifact)

	// New forecast invalidates memoized cold-start estimates.
	s.resetPredictor(ctx)

	logger.Log.Info().
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("forecast artifact written")

	return &ForecastReport{
		Series:         len(ds.Keys),
		Records:        len(records),
		TrainRows:      model.TrainRows,
		ValidationRows: model.ValidationRows,
		RMSE:           model.RMSE,
		MAE:            model.MAE,
		GeneratedAt:    time.Now(),
	}, nil
}

// RunPlanning derives production recommendations, regional allocations, and
// stock-out risks from the current forecast. The three artifacts are
// independent, so they are written on the worker pool.
func (s *PlanningService) RunPlanning(ctx context.Context) (*PlanningReport, error) {
	fc, err := s.artifacts.LoadForecast(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	inventory, err := s.inputs.LoadInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	products, err := s.inputs.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	recs := planner.Recommend(fc, s.cfg.Planning.SafetyBuffer)
	allocs := planner.Allocate(fc, recs)
	risks := planner.StockRisks(fc, inventory, products)

	jobs := []worker.Job{
		{Name: "save-production-plan", Run: func(ctx context.Context) error {
			return s.artifacts.SaveProductionPlan(ctx, recs)
		}},
		{Name: "save-allocation-plan", Run: func(ctx context.Context) error {
			return s.artifacts.SaveAllocationPlan(ctx, allocs)
		}},
		{Name: "save-stock-risk", Run: func(ctx context.Context) error {
			return s.artifacts.SaveStockRisk(ctx, risks)
		}},
	}
	if err := s.pool.Run(ctx, jobs); err != nil {
		return nil, fmt.Errorf("save planning artifacts: %w", err)
	}
	s.publish(ctx, store.ProductionArtifact)
	s.publish(ctx, store.AllocationArtifact)
	s.publish(ctx, store.StockRiskArtifact)

	report := &PlanningReport{
		Recommendations: len(recs),
		Allocations:     len(allocs),
		StockRisks:      len(risks),
	}
	for _, r := range recs {
		report.TotalRecommended += r.RecommendedQty
	}
	for _, r := range risks {
		report.TotalShortage += r.Shortage
		report.RevenueAtRisk += r.RevenueOpportunity
	}

	logger.Log.Info().
		Int("recommendations", len(recs)).
		Int("allocations", len(allocs)).
		Int("stock_risks", len(risks)).
		Int("total_recommended", report.TotalRecommended).
		Msg("planning artifacts written")
	return report, nil
}

// RunOptimization caps the production plan at the configured capacity and
// writes the optimized plan artifact.
func (s *PlanningService) RunOptimization(ctx context.Context) (*domain.OptimizedPlan, error) {
	recs, err := s.artifacts.LoadProductionPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load production plan: %w", err)
	}
	products, err := s.inputs.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var plan *domain.OptimizedPlan
	err = s.pool.Run(ctx, []worker.Job{{Name: "optimize-plan", Run: func(ctx context.Context) error {
		plan = optimizer.Optimize(recs, products, s.cfg.Planning.Capacity())
		return nil
	}}})
	if err != nil {
		return nil, err
	}
	if plan.Warning != "" {
		logger.Log.Warn().Str("warning", plan.Warning).Msg("optimizer fell back to uncut plan")
	}

	if err := s.artifacts.SaveOptimizedPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save optimized plan: %w", err)
	}
	s.publish(ctx, store.OptimizedArtifact)

	logger.Log.Info().
		Int("capacity", plan.Capacity).
		Int("total_recommended", plan.TotalRecommended).
		Int("total_optimized", plan.TotalOptimized).
		Float64("utilization_pct", plan.UtilizationPct).
		Msg("optimized plan written")
	return plan, nil
}

// RunScenario evaluates a what-if request against the committed baseline
// and persists the scenario plan. The comparison itself is returned, not
// stored.
func (s *PlanningService) RunScenario(ctx context.Context, req domain.ScenarioRequest) (*domain.ScenarioResult, error) {
	fc, err := s.artifacts.LoadForecast(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	recs, err := s.artifacts.LoadProductionPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load production plan: %w", err)
	}
	products, err := s.inputs.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var (
		result *domain.ScenarioResult
		plan   *domain.OptimizedPlan
	)
	err = s.pool.Run(ctx, []worker.Job{{Name: "simulate-scenario", Run: func(ctx context.Context) error {
		result, plan = scenario.Simulate(req, fc, recs, products, s.cfg.Planning.Capacity(), s.cfg.Planning.SafetyBuffer)
		return nil
	}}})
	if err != nil {
		return nil, err
	}

	if err := s.artifacts.SaveScenarioPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save scenario plan: %w", err)
	}
	s.publish(ctx, store.ScenarioArtifact)

	logger.Log.Info().
		Float64("demand_multiplier", result.Request.DemandMultiplier).
		Float64("price_multiplier", result.Request.PriceMultiplier).
		Float64("capacity_change_pct", result.Request.CapacityChangePct).
		Float64("revenue_change_pct", result.Delta.RevenueChangePct).
		Msg("scenario evaluated")
	return result, nil
}

// PredictNewProduct estimates demand for a catalog-new product. Estimates
// are memoized per catalog version; a forecast refresh rebuilds the
// predictor on next use.
func (s *PlanningService) PredictNewProduct(ctx context.Context, query domain.NewProductQuery) (*domain.NewProductEstimate, error) {
	predictor, err := s.coldstartPredictor(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.estimates.GetEstimate(ctx, predictor.CatalogHash(), query); err != nil {
		logger.Log.Warn().Err(err).Msg("cold-start cache read failed")
	} else if ok {
		return cached, nil
	}

	estimate, err := predictor.Predict(query)
	if err != nil {
		return nil, err
	}

	if err := s.estimates.SetEstimate(ctx, predictor.CatalogHash(), query, estimate); err != nil {
		logger.Log.Warn().Err(err).Msg("cold-start cache write failed")
	}
	return estimate, nil
}

// CapacityPlan returns the persisted optimized plan with run-level capacity
// context restored from configuration and the biggest lines first.
func (s *PlanningService) CapacityPlan(ctx context.Context) (*domain.OptimizedPlan, error) {
	plan, err := s.artifacts.LoadOptimizedPlan(ctx)
	if err != nil {
		return nil, err
	}
	plan.Capacity = s.cfg.Planning.Capacity()
	sort.SliceStable(plan.Records, func(i, j int) bool {
		return plan.Records[i].OptimizedQty > plan.Records[j].OptimizedQty
	})
	return plan, nil
}

// ConfidenceSummary aggregates forecast confidence per (product, segment),
// sorted by ascending average confidence so the shakiest lines lead.
// Memoized between forecast refreshes.
func (s *PlanningService) ConfidenceSummary(ctx context.Context) ([]domain.ConfidenceSummary, error) {
	if cached, ok, err := s.summaries.GetConfidence(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("confidence summary cache read failed")
	} else if ok {
		return cached, nil
	}

	fc, err := s.artifacts.LoadForecast(ctx)
	if err != nil {
		return nil, err
	}

	type key struct{ product, segment string }
	type agg struct {
		rows        int
		demand      float64
		confSum     float64
		confMin     float64
		confMax     float64
		intervalSum float64
	}
	groups := make(map[key]*agg)
	for _, f := range fc {
		k := key{f.ProductID, f.Segment}
		g, ok := groups[k]
		if !ok {
			g = &agg{confMin: f.ConfidenceScore, confMax: f.ConfidenceScore}
			groups[k] = g
		}
		g.rows++
		g.demand += f.PredictedDemand
		g.confSum += f.ConfidenceScore
		if f.ConfidenceScore < g.confMin {
			g.confMin = f.ConfidenceScore
		}
		if f.ConfidenceScore > g.confMax {
			g.confMax = f.ConfidenceScore
		}
		g.intervalSum += (f.UpperBound - f.LowerBound) / (f.PredictedDemand + 1) * 100
	}

	summaries := make([]domain.ConfidenceSummary, 0, len(groups))
	for k, g := range groups {
		summaries = append(summaries, domain.ConfidenceSummary{
			ProductID:      k.product,
			Segment:        k.segment,
			Rows:           g.rows,
			TotalDemand:    g.demand,
			AvgConfidence:  g.confSum / float64(g.rows),
			MinConfidence:  g.confMin,
			MaxConfidence:  g.confMax,
			AvgIntervalPct: g.intervalSum / float64(g.rows),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AvgConfidence != summaries[j].AvgConfidence {
			return summaries[i].AvgConfidence < summaries[j].AvgConfidence
		}
		if summaries[i].ProductID != summaries[j].ProductID {
			return summaries[i].ProductID < summaries[j].ProductID
		}
		return summaries[i].Segment < summaries[j].Segment
	})

	if err := s.summaries.SetConfidence(ctx, summaries); err != nil {
		logger.Log.Warn().Err(err).Msg("confidence summary cache write failed")
	}
	return summaries, nil
}

// coldstartPredictor lazily builds the predictor from the current catalog
// and forecast, reusing it while the catalog version is unchanged.
func (s *PlanningService) coldstartPredictor(ctx context.Context) (*coldstart.Predictor, error) {
	products, err := s.inputs.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.predictor != nil && s.predictor.CatalogHash() == coldstart.CatalogHash(products) {
		return s.predictor, nil
	}

	fc, err := s.artifacts.LoadForecast(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	predictor, err := coldstart.NewPredictor(products, fc)
	if err != nil {
		return nil, err
	}
	s.predictor = predictor
	return predictor, nil
}

// resetPredictor drops the in-memory predictor and all memoized read-side
// responses after a forecast refresh.
func (s *PlanningService) resetPredictor(ctx context.Context) {
	s.mu.Lock()
	s.predictor = nil
	s.mu.Unlock()
	if err := s.estimates.InvalidateAll(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("cold-start cache invalidation failed")
	}
	if err := s.summaries.Invalidate(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("confidence summary cache invalidation failed")
	}
}

// publish uploads an artifact to object storage when publishing is
// configured. Failures are logged, never fatal.
func (s *PlanningService) publish(ctx context.Context, name string) {
	if s.publisher == nil {
		return
	}
	path := filepath.Join(s.cfg.App.DataDir, name)
	if err := s.publisher.Publish(ctx, path, name); err != nil {
		logger.Log.Warn().Err(err).Str("artifact", name).Msg("artifact publish failed")
	}
}

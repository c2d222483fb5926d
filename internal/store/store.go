// Package store persists the tabular artifacts the planning pipeline
// consumes and produces. Inputs (orders, products, locations, inventory)
// can come from flat files or Postgres; derived artifacts are flat files
// replaced atomically so concurrent readers never observe partial writes.
package store

import (
	"context"

	"github.com/optilens/demand-engine/internal/domain"
)

// InputSource reads the externally-refreshed input tables.
type InputSource interface {
	LoadOrders(ctx context.Context) ([]domain.Order, error)
	LoadProducts(ctx context.Context) ([]domain.Product, error)
	LoadLocations(ctx context.Context) ([]domain.Location, error)
	LoadInventory(ctx context.Context) ([]domain.InventorySnapshot, error)
}

// ArtifactStore reads and writes the derived pipeline artifacts.
type ArtifactStore interface {
	LoadForecast(ctx context.Context) ([]domain.ForecastRecord, error)
	SaveForecast(ctx context.Context, records []domain.ForecastRecord) error

	LoadProductionPlan(ctx context.Context) ([]domain.ProductionRecommendation, error)
	SaveProductionPlan(ctx context.Context, plan []domain.ProductionRecommendation) error

	SaveAllocationPlan(ctx context.Context, plan []domain.AllocationRecord) error
	SaveStockRisk(ctx context.Context, risks []domain.StockRiskRecord) error

	LoadOptimizedPlan(ctx context.Context) (*domain.OptimizedPlan, error)
	SaveOptimizedPlan(ctx context.Context, plan *domain.OptimizedPlan) error

	SaveScenarioPlan(ctx context.Context, plan *domain.OptimizedPlan) error
}

// internal/domain/models.go
package domain

import "time"

// Order is a single immutable historical sales fact.
type Order struct {
	Date       time.Time `json:"date" db:"order_date"`
	LocationID string    `json:"location_id" db:"location_id"`
	ProductID  string    `json:"product_id" db:"product_id"`
	Region     string    `json:"region" db:"region"`
	Segment    string    `json:"segment" db:"segment"`
	Quantity   float64   `json:"quantity" db:"quantity"`
	Price      float64   `json:"price" db:"price"`
}

// Product is a static catalog entry.
type Product struct {
	ProductID string  `json:"product_id" db:"product_id"`
	FrameType string  `json:"frame_type" db:"frame_type"`
	LensType  string  `json:"lens_type" db:"lens_type"`
	Color     string  `json:"color" db:"color"`
	PriceBand string  `json:"price_band" db:"price_band"`
	BaseCost  float64 `json:"base_cost" db:"base_cost"`
}

// Location is a selling location in the network.
type Location struct {
	LocationID  string  `json:"location_id" db:"location_id"`
	Region      string  `json:"region" db:"region"`
	Tier        string  `json:"tier" db:"tier"`
	AvgFootfall float64 `json:"avg_footfall" db:"avg_footfall"`
}

// InventorySnapshot is the current stock position of a product at a location.
type InventorySnapshot struct {
	LocationID   string  `json:"location_id" db:"location_id"`
	ProductID    string  `json:"product_id" db:"product_id"`
	StockLevel   float64 `json:"stock_level" db:"stock_level"`
	LeadTimeDays int     `json:"lead_time_days" db:"lead_time_days"`
}

// SeriesKey identifies one demand time series.
type SeriesKey struct {
	LocationID string
	ProductID  string
	Segment    string
}

// ID renders the key as location⊕product⊕segment, the form used for
// residual-std lookups.
func (k SeriesKey) ID() string {
	return k.LocationID + "_" + k.ProductID + "_" + k.Segment
}

// ForecastRecord is one forecast-horizon day for one series.
type ForecastRecord struct {
	Date            time.Time `json:"date"`
	LocationID      string    `json:"location_id"`
	Region          string    `json:"region"`
	ProductID       string    `json:"product_id"`
	Segment         string    `json:"segment"`
	PredictedDemand float64   `json:"predicted_demand"`
	LowerBound      float64   `json:"lower_bound"`
	UpperBound      float64   `json:"upper_bound"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// ProductionRecommendation is the buffered production quantity for a
// (product, segment) combination.
type ProductionRecommendation struct {
	ProductID      string `json:"product_id"`
	Segment        string `json:"segment"`
	RecommendedQty int    `json:"recommended_qty"`
}

// AllocationRecord assigns part of a production recommendation to a region.
type AllocationRecord struct {
	Region         string `json:"region"`
	ProductID      string `json:"product_id"`
	Segment        string `json:"segment"`
	AllocatedUnits int    `json:"allocated_units"`
}

// StockRiskRecord is a location-level shortage finding. Only rows with
// positive shortage are retained.
type StockRiskRecord struct {
	LocationID         string  `json:"location_id"`
	Region             string  `json:"region"`
	ProductID          string  `json:"product_id"`
	Segment            string  `json:"segment"`
	LocationDemand     float64 `json:"location_demand"`
	StockLevel         float64 `json:"stock_level"`
	Shortage           float64 `json:"shortage"`
	RiskProbability    float64 `json:"risk_probability"`
	RevenueOpportunity float64 `json:"revenue_opportunity"`
}

// OptimizedPlanRecord is one line of the capacity-optimized production plan.
type OptimizedPlanRecord struct {
	ProductID              string  `json:"product_id"`
	Segment                string  `json:"segment"`
	RecommendedQty         int     `json:"recommended_qty"`
	OptimizedQty           int     `json:"optimized_qty"`
	PriceBand              string  `json:"price_band"`
	Margin                 float64 `json:"margin"`
	RevenueCaptured        float64 `json:"revenue_captured"`
	RevenueLost            float64 `json:"revenue_lost"`
	CapacityUtilizationPct float64 `json:"capacity_utilization_pct"`
}

// OptimizedPlan is the full optimizer output plus run-level summary fields.
type OptimizedPlan struct {
	Records          []OptimizedPlanRecord `json:"records"`
	Capacity         int                   `json:"capacity"`
	TotalRecommended int                   `json:"total_recommended"`
	TotalOptimized   int                   `json:"total_optimized"`
	RevenueCaptured  float64               `json:"revenue_captured"`
	RevenueLost      float64               `json:"revenue_lost"`
	UtilizationPct   float64               `json:"utilization_pct"`
	// Warning is set when the solver failed and the no-cut fallback was
	// applied. Never fatal.
	Warning string `json:"warning,omitempty"`
}

// ScenarioRequest carries the what-if multipliers.
type ScenarioRequest struct {
	DemandMultiplier  float64 `json:"demand_multiplier"`
	PriceMultiplier   float64 `json:"price_multiplier"`
	CapacityChangePct float64 `json:"capacity_change_pct"`
}

// ScenarioBlock is one side (baseline or scenario) of a comparison.
type ScenarioBlock struct {
	TotalDemand     float64 `json:"total_demand"`
	TotalProduction int     `json:"total_production"`
	TotalRevenue    float64 `json:"total_revenue"`
	Capacity        int     `json:"capacity"`
	UtilizationPct  float64 `json:"utilization_pct"`
}

// ScenarioDelta reports scenario-minus-baseline movement, absolute and
// percentage, per reported metric.
type ScenarioDelta struct {
	DemandChange         float64 `json:"demand_change"`
	DemandChangePct      float64 `json:"demand_change_pct"`
	ProductionChange     int     `json:"production_change"`
	ProductionChangePct  float64 `json:"production_change_pct"`
	RevenueChange        float64 `json:"revenue_change"`
	RevenueChangePct     float64 `json:"revenue_change_pct"`
	CapacityChange       int     `json:"capacity_change"`
	CapacityChangePct    float64 `json:"capacity_change_pct"`
	UtilizationChange    float64 `json:"utilization_change"`
	UtilizationChangePct float64 `json:"utilization_change_pct"`
}

// ScenarioResult is the full what-if comparison. Ephemeral, computed per
// request.
type ScenarioResult struct {
	Request  ScenarioRequest `json:"request"`
	Baseline ScenarioBlock   `json:"baseline"`
	Scenario ScenarioBlock   `json:"scenario"`
	Delta    ScenarioDelta   `json:"delta"`
	Warning  string          `json:"warning,omitempty"`
}

// NewProductQuery describes a catalog-new product for cold-start estimation.
type NewProductQuery struct {
	FrameType string `json:"frame_type"`
	LensType  string `json:"lens_type"`
	PriceBand string `json:"price_band"`
	Color     string `json:"color,omitempty"`
}

// SimilarProduct is one ranked cold-start neighbor.
type SimilarProduct struct {
	ProductID string  `json:"product_id"`
	FrameType string  `json:"frame_type"`
	LensType  string  `json:"lens_type"`
	PriceBand string  `json:"price_band"`
	BaseCost  float64 `json:"base_cost"`
	Distance  float64 `json:"distance"`
}

// RegionDemandEstimate is cold-start demand for one (region, segment) cell.
type RegionDemandEstimate struct {
	Region          string  `json:"region"`
	Segment         string  `json:"segment"`
	PredictedDemand float64 `json:"predicted_demand"`
}

// NewProductEstimate is the full cold-start prediction response.
type NewProductEstimate struct {
	TotalDemand     float64                `json:"total_demand"`
	ByRegion        []RegionDemandEstimate `json:"by_region"`
	SimilarProducts []SimilarProduct       `json:"similar_products"`
}

// ConfidenceSummary aggregates forecast confidence per (product, segment).
type ConfidenceSummary struct {
	ProductID      string  `json:"product_id"`
	Segment        string  `json:"segment"`
	Rows           int     `json:"rows"`
	TotalDemand    float64 `json:"total_demand"`
	AvgConfidence  float64 `json:"avg_confidence"`
	MinConfidence  float64 `json:"min_confidence"`
	MaxConfidence  float64 `json:"max_confidence"`
	AvgIntervalPct float64 `json:"avg_interval_pct"`
}

// Package optimizer allocates finite factory capacity across the
// recommended production plan, maximizing margin-weighted output with a
// linear program. Capacity shortfalls cut the lowest-margin lines first.
package optimizer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
	"gonum.org/v1/gonum/stat"

	"github.com/optilens/demand-engine/internal/domain"
)

// PriceMarkup converts base cost into estimated selling price.
const PriceMarkup = 1.5

// marginMultipliers weights each price band; higher bands carry higher
// margin per unit. Unknown bands fall back to the lowest weight.
var marginMultipliers = map[string]float64{
	"low":     1.0,
	"mid":     1.3,
	"high":    1.6,
	"premium": 2.0,
}

const defaultPriceBand = "mid"

// Optimize caps the recommended production plan at the given total capacity.
//
// Decision variable x_i is the produced quantity of plan line i, with
// 0 <= x_i <= recommended_i and sum(x) <= capacity, maximizing
// sum(margin_i * x_i). When capacity covers the whole plan the
// recommendations pass through uncut and the solver is skipped. A solver
// failure falls back to the uncut plan and sets Warning; it never fails the
// run.
func Optimize(recs []domain.ProductionRecommendation, products []domain.Product, capacity int) *domain.OptimizedPlan {
	plan := &domain.OptimizedPlan{Capacity: capacity}
	if len(recs) == 0 {
		return plan
	}

	costs, bands := resolveCatalog(recs, products)

	n := len(recs)
	recommended := make([]float64, n)
	margins := make([]float64, n)
	for i, r := range recs {
		recommended[i] = float64(r.RecommendedQty)
		mult, ok := marginMultipliers[bands[i]]
		if !ok {
			mult = 1.0
		}
		margins[i] = mult * costs[i]
	}

	totalRecommended := 0
	for _, r := range recs {
		totalRecommended += r.RecommendedQty
	}

	optimized := make([]int, n)
	if totalRecommended <= capacity {
		// Nothing to cut.
		for i, r := range recs {
			optimized[i] = r.RecommendedQty
		}
	} else {
		x, err := solve(margins, recommended, float64(capacity))
		if err != nil {
			plan.Warning = fmt.Sprintf("capacity optimization failed, keeping uncut plan: %v", err)
			for i, r := range recs {
				optimized[i] = r.RecommendedQty
			}
		} else {
			for i := range x {
				optimized[i] = int(math.Round(x[i]))
			}
		}
	}

	totalOptimized := 0
	for _, q := range optimized {
		totalOptimized += q
	}
	utilization := 0.0
	if capacity > 0 {
		utilization = round1(float64(totalOptimized) / float64(capacity) * 100)
	}

	plan.Records = make([]domain.OptimizedPlanRecord, n)
	for i, r := range recs {
		captured := float64(optimized[i]) * costs[i] * PriceMarkup
		lost := (recommended[i] - float64(optimized[i])) * costs[i] * PriceMarkup
		plan.Records[i] = domain.OptimizedPlanRecord{
			ProductID:              r.ProductID,
			Segment:                r.Segment,
			RecommendedQty:         r.RecommendedQty,
			OptimizedQty:           optimized[i],
			PriceBand:              bands[i],
			Margin:                 margins[i],
			RevenueCaptured:        captured,
			RevenueLost:            lost,
			CapacityUtilizationPct: utilization,
		}
		plan.RevenueCaptured += captured
		plan.RevenueLost += lost
	}
	plan.TotalRecommended = totalRecommended
	plan.TotalOptimized = totalOptimized
	plan.UtilizationPct = utilization
	return plan
}

// resolveCatalog joins each plan line to its catalog price band and base
// cost. Missing bands default to mid; missing costs take the median of the
// known costs on the plan.
func resolveCatalog(recs []domain.ProductionRecommendation, products []domain.Product) (costs []float64, bands []string) {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if _, ok := byID[p.ProductID]; !ok {
			byID[p.ProductID] = p
		}
	}

	costs = make([]float64, len(recs))
	bands = make([]string, len(recs))
	var known []float64
	missing := make([]int, 0)
	for i, r := range recs {
		p, ok := byID[r.ProductID]
		if !ok {
			bands[i] = defaultPriceBand
			missing = append(missing, i)
			continue
		}
		bands[i] = p.PriceBand
		if bands[i] == "" {
			bands[i] = defaultPriceBand
		}
		costs[i] = p.BaseCost
		known = append(known, p.BaseCost)
	}

	if len(missing) > 0 && len(known) > 0 {
		sort.Float64s(known)
		median := stat.Quantile(0.5, stat.Empirical, known, nil)
		for _, i := range missing {
			costs[i] = median
		}
	}
	return costs, bands
}

// solve runs the simplex method on the standard-form program
//
//	minimize  -margin . x
//	subject to sum(x) + s0          = capacity
//	           x_i     + s_i        = recommended_i
//	           x, s >= 0
//
// where s0 and s_i are slack variables for the capacity and per-line
// upper bounds.
func solve(margins, recommended []float64, capacity float64) ([]float64, error) {
	n := len(margins)
	cols := 2*n + 1

	c := make([]float64, cols)
	for i, m := range margins {
		c[i] = -m
	}

	a := mat.NewDense(n+1, cols, nil)
	b := make([]float64, n+1)
	for j := 0; j < n; j++ {
		a.Set(0, j, 1)
	}
	a.Set(0, n, 1) // capacity slack
	b[0] = capacity
	for i := 0; i < n; i++ {
		a.Set(i+1, i, 1)
		a.Set(i+1, n+1+i, 1)
		b[i+1] = recommended[i]
	}

	_, x, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, err
	}
	return x[:n], nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

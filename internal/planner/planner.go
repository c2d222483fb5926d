// Package planner turns a demand forecast into production recommendations,
// regional allocations, and stock-out risk findings. It is pure computation
// over loaded records; persistence belongs to the caller.
package planner

import (
	"math"
	"sort"

	"github.com/optilens/demand-engine/internal/domain"
)

const (
	// SafetyBuffer pads production above forecast demand to absorb error.
	SafetyBuffer = 1.15
	// PriceMarkup estimates selling price from base cost for revenue-at-risk.
	PriceMarkup = 1.5
	// riskEpsilon keeps the risk ratio finite on zero-demand rows.
	riskEpsilon = 0.001
)

type productSegment struct {
	ProductID string
	Segment   string
}

type regionProductSegment struct {
	Region    string
	ProductID string
	Segment   string
}

type locationProductSegment struct {
	LocationID string
	ProductID  string
	Segment    string
}

// Recommend aggregates forecast demand per (product, segment) and applies
// the safety buffer. Output is sorted by product then segment.
func Recommend(forecast []domain.ForecastRecord, buffer float64) []domain.ProductionRecommendation {
	if buffer <= 0 {
		buffer = SafetyBuffer
	}

	demand := make(map[productSegment]float64)
	for _, f := range forecast {
		demand[productSegment{f.ProductID, f.Segment}] += f.PredictedDemand
	}

	recs := make([]domain.ProductionRecommendation, 0, len(demand))
	for k, total := range demand {
		recs = append(recs, domain.ProductionRecommendation{
			ProductID:      k.ProductID,
			Segment:        k.Segment,
			RecommendedQty: int(math.Round(total * buffer)),
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ProductID != recs[j].ProductID {
			return recs[i].ProductID < recs[j].ProductID
		}
		return recs[i].Segment < recs[j].Segment
	})
	return recs
}

// Allocate splits each recommendation across regions in proportion to each
// region's share of the forecast demand. Shares are rounded independently,
// so a recommendation's allocations can differ from its total by a unit or
// two.
func Allocate(forecast []domain.ForecastRecord, recs []domain.ProductionRecommendation) []domain.AllocationRecord {
	totalDemand := make(map[productSegment]float64)
	regionDemand := make(map[regionProductSegment]float64)
	for _, f := range forecast {
		totalDemand[productSegment{f.ProductID, f.Segment}] += f.PredictedDemand
		regionDemand[regionProductSegment{f.Region, f.ProductID, f.Segment}] += f.PredictedDemand
	}

	recommended := make(map[productSegment]int, len(recs))
	for _, r := range recs {
		recommended[productSegment{r.ProductID, r.Segment}] = r.RecommendedQty
	}

	allocs := make([]domain.AllocationRecord, 0, len(regionDemand))
	for k, d := range regionDemand {
		ps := productSegment{k.ProductID, k.Segment}
		total := totalDemand[ps]
		if total == 0 {
			continue
		}
		units := int(math.Round(d / total * float64(recommended[ps])))
		allocs = append(allocs, domain.AllocationRecord{
			Region:         k.Region,
			ProductID:      k.ProductID,
			Segment:        k.Segment,
			AllocatedUnits: units,
		})
	}
	sort.Slice(allocs, func(i, j int) bool {
		a, b := allocs[i], allocs[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Segment < b.Segment
	})
	return allocs
}

// StockRisks compares location-level forecast demand against current stock
// and keeps only positive shortages. Locations absent from the inventory
// snapshot count as empty. Revenue at risk prices the shortage at base cost
// plus the standard markup; products missing from the catalog contribute
// zero revenue but remain flagged.
func StockRisks(forecast []domain.ForecastRecord, inventory []domain.InventorySnapshot, products []domain.Product) []domain.StockRiskRecord {
	type demandEntry struct {
		region string
		demand float64
	}
	locationDemand := make(map[locationProductSegment]*demandEntry)
	for _, f := range forecast {
		k := locationProductSegment{f.LocationID, f.ProductID, f.Segment}
		e, ok := locationDemand[k]
		if !ok {
			e = &demandEntry{region: f.Region}
			locationDemand[k] = e
		}
		e.demand += f.PredictedDemand
	}

	type stockKey struct {
		LocationID string
		ProductID  string
	}
	stock := make(map[stockKey]float64, len(inventory))
	for _, inv := range inventory {
		stock[stockKey{inv.LocationID, inv.ProductID}] += inv.StockLevel
	}

	costByProduct := make(map[string]float64, len(products))
	for _, p := range products {
		costByProduct[p.ProductID] = p.BaseCost
	}

	risks := make([]domain.StockRiskRecord, 0)
	for k, e := range locationDemand {
		level := stock[stockKey{k.LocationID, k.ProductID}]
		shortage := round2(math.Max(0, e.demand-level))
		if shortage <= 0 {
			continue
		}
		risk := round2(math.Min(1, shortage/(e.demand+riskEpsilon)))
		risks = append(risks, domain.StockRiskRecord{
			LocationID:         k.LocationID,
			Region:             e.region,
			ProductID:          k.ProductID,
			Segment:            k.Segment,
			LocationDemand:     e.demand,
			StockLevel:         level,
			Shortage:           shortage,
			RiskProbability:    risk,
			RevenueOpportunity: shortage * costByProduct[k.ProductID] * PriceMarkup,
		})
	}
	sort.Slice(risks, func(i, j int) bool {
		a, b := risks[i], risks[j]
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Segment < b.Segment
	})
	return risks
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

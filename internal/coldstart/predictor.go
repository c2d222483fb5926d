// Package coldstart estimates demand for products that have no sales
// history by borrowing the forecasts of the most similar cataloged
// products. Similarity is cosine distance over one-hot encoded catalog
// attributes, with a price-band adjustment for positioning above or below
// the neighbors.
package coldstart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/optilens/demand-engine/internal/domain"
)

const (
	maxNeighbors = 5
	// bandStepAdjustment scales demand ~5% per price-band step away from
	// the neighbor average.
	bandStepAdjustment = 0.05
)

// priceBandOrder ranks bands for the positioning adjustment.
var priceBandOrder = map[string]int{
	"low":     0,
	"mid":     1,
	"high":    2,
	"premium": 3,
}

const defaultBandOrdinal = 1 // mid

// featureEncoder one-hot encodes the categorical similarity features. Each
// attribute owns a contiguous block of the vector; values outside the
// fitted vocabulary encode to all zeros in their block.
type featureEncoder struct {
	frameTypes map[string]int
	lensTypes  map[string]int
	priceBands map[string]int
	dims       int
}

func newFeatureEncoder(products []domain.Product) *featureEncoder {
	frames := vocabulary(products, func(p domain.Product) string { return p.FrameType })
	lenses := vocabulary(products, func(p domain.Product) string { return p.LensType })
	bands := vocabulary(products, func(p domain.Product) string { return p.PriceBand })

	e := &featureEncoder{
		frameTypes: frames,
		lensTypes:  lenses,
		priceBands: bands,
	}
	e.dims = len(frames) + len(lenses) + len(bands)
	return e
}

func vocabulary(products []domain.Product, attr func(domain.Product) string) map[string]int {
	seen := make(map[string]bool)
	var values []string
	for _, p := range products {
		v := attr(p)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)
	index := make(map[string]int, len(values))
	for i, v := range values {
		index[v] = i
	}
	return index
}

func (e *featureEncoder) encode(frameType, lensType, priceBand string) []float64 {
	vec := make([]float64, e.dims)
	if i, ok := e.frameTypes[frameType]; ok {
		vec[i] = 1
	}
	offset := len(e.frameTypes)
	if i, ok := e.lensTypes[lensType]; ok {
		vec[offset+i] = 1
	}
	offset += len(e.lensTypes)
	if i, ok := e.priceBands[priceBand]; ok {
		vec[offset+i] = 1
	}
	return vec
}

// Predictor is the immutable cold-start artifact: the encoded catalog plus
// the current forecast, built once per catalog version and shared across
// requests.
type Predictor struct {
	products []domain.Product
	vectors  [][]float64
	encoder  *featureEncoder
	forecast []domain.ForecastRecord
	hash     string
}

// NewPredictor fits the encoder on the catalog and indexes the forecast.
func NewPredictor(products []domain.Product, forecast []domain.ForecastRecord) (*Predictor, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("cannot fit cold-start predictor on an empty catalog")
	}

	encoder := newFeatureEncoder(products)
	vectors := make([][]float64, len(products))
	for i, p := range products {
		vectors[i] = encoder.encode(p.FrameType, p.LensType, p.PriceBand)
	}

	return &Predictor{
		products: products,
		vectors:  vectors,
		encoder:  encoder,
		forecast: forecast,
		hash:     CatalogHash(products),
	}, nil
}

// CatalogHash identifies the catalog version this predictor was fit on,
// used as a cache key by callers.
func (p *Predictor) CatalogHash() string {
	return p.hash
}

// CatalogHash fingerprints the similarity-relevant catalog attributes.
func CatalogHash(products []domain.Product) string {
	ids := make([]string, len(products))
	for i, pr := range products {
		ids[i] = pr.ProductID + "|" + pr.FrameType + "|" + pr.LensType + "|" + pr.PriceBand
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Predict estimates per-(region, segment) demand for the described product.
// The estimate averages the forecasts of the k nearest catalog neighbors;
// when none of the neighbors carry a forecast the global per-cell average is
// used instead. The result is scaled by the price-band positioning of the
// new product relative to its neighbors.
func (p *Predictor) Predict(query domain.NewProductQuery) (*domain.NewProductEstimate, error) {
	neighbors := p.nearest(query, maxNeighbors)

	neighborIDs := make(map[string]bool, len(neighbors))
	for _, n := range neighbors {
		neighborIDs[n.ProductID] = true
	}

	cells := cellAverages(p.forecast, neighborIDs)
	if len(cells) == 0 {
		// No neighbor has a forecast; fall back to the network-wide average.
		cells = cellAverages(p.forecast, nil)
	}

	adjustment := p.bandAdjustment(query.PriceBand, neighbors)

	estimate := &domain.NewProductEstimate{SimilarProducts: neighbors}
	for _, c := range cells {
		demand := round2(c.mean() * adjustment)
		estimate.ByRegion = append(estimate.ByRegion, domain.RegionDemandEstimate{
			Region:          c.region,
			Segment:         c.segment,
			PredictedDemand: demand,
		})
		estimate.TotalDemand += demand
	}
	sort.Slice(estimate.ByRegion, func(i, j int) bool {
		a, b := estimate.ByRegion[i], estimate.ByRegion[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Segment < b.Segment
	})
	estimate.TotalDemand = round2(estimate.TotalDemand)
	return estimate, nil
}

// nearest ranks the catalog by cosine distance to the query and returns the
// top k. Ties break on catalog order for determinism.
func (p *Predictor) nearest(query domain.NewProductQuery, k int) []domain.SimilarProduct {
	queryVec := p.encoder.encode(query.FrameType, query.LensType, query.PriceBand)

	type scored struct {
		index    int
		distance float64
	}
	ranked := make([]scored, len(p.products))
	for i := range p.products {
		ranked[i] = scored{index: i, distance: cosineDistance(queryVec, p.vectors[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].distance < ranked[j].distance })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]domain.SimilarProduct, k)
	for i := 0; i < k; i++ {
		prod := p.products[ranked[i].index]
		out[i] = domain.SimilarProduct{
			ProductID: prod.ProductID,
			FrameType: prod.FrameType,
			LensType:  prod.LensType,
			PriceBand: prod.PriceBand,
			BaseCost:  prod.BaseCost,
			Distance:  ranked[i].distance,
		}
	}
	return out
}

// bandAdjustment scales demand by how the new product's price band sits
// relative to the average band of its neighbors.
func (p *Predictor) bandAdjustment(band string, neighbors []domain.SimilarProduct) float64 {
	newOrd, ok := priceBandOrder[band]
	if !ok {
		newOrd = defaultBandOrdinal
	}

	sum, count := 0.0, 0
	for _, n := range neighbors {
		if ord, ok := priceBandOrder[n.PriceBand]; ok {
			sum += float64(ord)
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	return 1.0 + (float64(newOrd)-sum/float64(count))*bandStepAdjustment
}

func cosineDistance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1.0
	}
	return 1.0 - floats.Dot(a, b)/(na*nb)
}

type cell struct {
	region  string
	segment string
	sum     float64
	count   int
}

func (c *cell) mean() float64 {
	return c.sum / float64(c.count)
}

// cellAverages computes the mean predicted demand per (region, segment),
// restricted to the given products, or network-wide when products is nil.
func cellAverages(forecast []domain.ForecastRecord, products map[string]bool) []*cell {
	type key struct{ region, segment string }
	cells := make(map[key]*cell)
	for _, f := range forecast {
		if products != nil && !products[f.ProductID] {
			continue
		}
		k := key{f.Region, f.Segment}
		c, ok := cells[k]
		if !ok {
			c = &cell{region: f.Region, segment: f.Segment}
			cells[k] = c
		}
		c.sum += f.PredictedDemand
		c.count++
	}

	out := make([]*cell, 0, len(cells))
	for _, c := range cells {
		out = append(out, c)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

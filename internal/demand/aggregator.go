// Package demand turns raw order history into per-series feature rows for
// model training. All joins and aggregations are explicit and keyed so the
// output is deterministic regardless of input ordering.
package demand

import (
	"sort"
	"time"

	"github.com/optilens/demand-engine/internal/domain"
)

// Feature vector layout. The model trains on numeric features only.
const (
	FeatDayOfWeek = iota
	FeatWeekOfYear
	FeatMonth
	FeatAvgFootfall
	FeatLag1
	FeatLag7
	FeatLag14
	FeatRollingMean7
	FeatRollingMean14
	NumFeatures
)

// FeatureNames mirrors the feature vector layout, for diagnostics.
var FeatureNames = []string{
	"day_of_week", "week_of_year", "month", "avg_footfall",
	"lag_1", "lag_7", "lag_14", "rolling_mean_7", "rolling_mean_14",
}

// Row is one engineered observation: a series, a date, the realized daily
// quantity, and its feature vector.
type Row struct {
	Key      domain.SeriesKey
	Region   string
	Date     time.Time
	DailyQty float64
	Features [NumFeatures]float64
}

// Series is the ordered demand history of one (location, product, segment)
// combination plus the static attributes its feature rows carry.
type Series struct {
	Key         domain.SeriesKey
	Region      string
	Tier        string
	AvgFootfall float64
	Dates       []time.Time
	Quantities  []float64
}

// LastDate returns the date of the final observation.
func (s *Series) LastDate() time.Time {
	return s.Dates[len(s.Dates)-1]
}

// LastFeatures fills the lag and rolling slots of a feature vector as they
// were engineered for the final observation, so forecasting can start from
// the exact row the model last trained on.
func (s *Series) LastFeatures(features *[NumFeatures]float64) {
	i := len(s.Quantities) - 1
	features[FeatLag1] = lag(s.Quantities, i, 1)
	features[FeatLag7] = lag(s.Quantities, i, 7)
	features[FeatLag14] = lag(s.Quantities, i, 14)
	features[FeatRollingMean7] = shiftedRollingMean(s.Quantities, i, 7)
	features[FeatRollingMean14] = shiftedRollingMean(s.Quantities, i, 14)
}

// Dataset is the full engineered training table plus per-series history for
// recursive forecasting.
type Dataset struct {
	Rows    []Row
	Series  map[domain.SeriesKey]*Series
	Keys    []domain.SeriesKey // sorted, for deterministic iteration
	MaxDate time.Time
}

// DayOfWeek encodes Monday as 0 through Sunday as 6, the same encoding at
// training and forecast time.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// CalendarFeatures fills the day-of-week, week-of-year, and month slots of a
// feature vector for the given date.
func CalendarFeatures(t time.Time, features *[NumFeatures]float64) {
	_, week := t.ISOWeek()
	features[FeatDayOfWeek] = float64(DayOfWeek(t))
	features[FeatWeekOfYear] = float64(week)
	features[FeatMonth] = float64(t.Month())
}

// Build aggregates orders into daily per-series quantities, joins product
// and location attributes, and derives calendar, lag, and rolling features.
// Lag and rolling windows are computed within each series only, on the
// series shifted by one day, so no row ever sees its own target.
func Build(orders []domain.Order, products []domain.Product, locations []domain.Location) *Dataset {
	productsByID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productsByID[p.ProductID] = p
	}
	locationsByID := make(map[string]domain.Location, len(locations))
	for _, l := range locations {
		locationsByID[l.LocationID] = l
	}

	// Sum quantity per (series, date).
	type dailyKey struct {
		key  domain.SeriesKey
		date time.Time
	}
	daily := make(map[dailyKey]float64)
	regionByKey := make(map[domain.SeriesKey]string)
	for _, o := range orders {
		k := domain.SeriesKey{LocationID: o.LocationID, ProductID: o.ProductID, Segment: o.Segment}
		day := o.Date.Truncate(24 * time.Hour)
		daily[dailyKey{key: k, date: day}] += o.Quantity
		if _, ok := regionByKey[k]; !ok {
			regionByKey[k] = o.Region
		}
	}

	// Assemble ordered series.
	series := make(map[domain.SeriesKey]*Series)
	for dk, qty := range daily {
		s, ok := series[dk.key]
		if !ok {
			region := regionByKey[dk.key]
			var tier string
			var footfall float64
			if loc, ok := locationsByID[dk.key.LocationID]; ok {
				tier = loc.Tier
				footfall = loc.AvgFootfall
				if loc.Region != "" {
					region = loc.Region
				}
			}
			s = &Series{
				Key:         dk.key,
				Region:      region,
				Tier:        tier,
				AvgFootfall: footfall,
			}
			series[dk.key] = s
		}
		s.Dates = append(s.Dates, dk.date)
		s.Quantities = append(s.Quantities, qty)
	}

	keys := make([]domain.SeriesKey, 0, len(series))
	var maxDate time.Time
	for k, s := range series {
		sort.Sort(byDate{s})
		keys = append(keys, k)
		if last := s.LastDate(); last.After(maxDate) {
			maxDate = last
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID() < keys[j].ID() })

	ds := &Dataset{
		Series:  series,
		Keys:    keys,
		MaxDate: maxDate,
	}

	for _, k := range keys {
		s := series[k]
		for i := range s.Dates {
			row := Row{
				Key:      k,
				Region:   s.Region,
				Date:     s.Dates[i],
				DailyQty: s.Quantities[i],
			}
			CalendarFeatures(s.Dates[i], &row.Features)
			row.Features[FeatAvgFootfall] = s.AvgFootfall
			row.Features[FeatLag1] = lag(s.Quantities, i, 1)
			row.Features[FeatLag7] = lag(s.Quantities, i, 7)
			row.Features[FeatLag14] = lag(s.Quantities, i, 14)
			row.Features[FeatRollingMean7] = shiftedRollingMean(s.Quantities, i, 7)
			row.Features[FeatRollingMean14] = shiftedRollingMean(s.Quantities, i, 14)
			ds.Rows = append(ds.Rows, row)
		}
	}

	return ds
}

// lag returns the quantity offset observations back, or 0 when the series
// has no history that far ("no prior sales").
func lag(quantities []float64, i, offset int) float64 {
	if i-offset < 0 {
		return 0
	}
	return quantities[i-offset]
}

// shiftedRollingMean averages up to window observations strictly before
// index i. The first observation of a series has no prior history and
// yields 0.
func shiftedRollingMean(quantities []float64, i, window int) float64 {
	if i == 0 {
		return 0
	}
	start := i - window
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, q := range quantities[start:i] {
		sum += q
	}
	return sum / float64(i-start)
}

// byDate co-sorts a series' dates and quantities.
type byDate struct{ s *Series }

func (b byDate) Len() int           { return len(b.s.Dates) }
func (b byDate) Less(i, j int) bool { return b.s.Dates[i].Before(b.s.Dates[j]) }
func (b byDate) Swap(i, j int) {
	b.s.Dates[i], b.s.Dates[j] = b.s.Dates[j], b.s.Dates[i]
	b.s.Quantities[i], b.s.Quantities[j] = b.s.Quantities[j], b.s.Quantities[i]
}

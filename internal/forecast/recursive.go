package forecast

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/optilens/demand-engine/internal/demand"
	"github.com/optilens/demand-engine/internal/domain"
)

const (
	// zScore95 is the normal z for a 95% prediction interval.
	zScore95 = 1.96

	confidenceCeiling = 0.95
	confidenceSpan    = 0.65
)

// Forecast rolls the model forward horizonDays past the end of each series.
// Each predicted day is fed back as the next day's lag-1 so the horizon
// compounds on its own predictions. Series are forecast concurrently but
// the output ordering follows the sorted series keys.
func Forecast(ctx context.Context, ds *demand.Dataset, model *Model, horizonDays, workers int) ([]domain.ForecastRecord, error) {
	if horizonDays <= 0 {
		horizonDays = 7
	}
	if workers < 1 {
		workers = 1
	}

	perSeries := make([][]domain.ForecastRecord, len(ds.Keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range ds.Keys {
		i, key := i, key
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			perSeries[i] = forecastSeries(ds.Series[key], model, horizonDays)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []domain.ForecastRecord
	for _, rs := range perSeries {
		records = append(records, rs...)
	}

	// Confidence normalizes the raw interval ratios; the stored fields are
	// rounded only afterwards so ranking never depends on rounding.
	scoreConfidence(records)
	for i := range records {
		records[i].PredictedDemand = round2(records[i].PredictedDemand)
		records[i].LowerBound = round2(records[i].LowerBound)
		records[i].UpperBound = round2(records[i].UpperBound)
	}
	return records, nil
}

// forecastSeries produces horizonDays of recursive predictions for one
// series, with 95% intervals widened by the series' validation residual std.
func forecastSeries(s *demand.Series, model *Model, horizonDays int) []domain.ForecastRecord {
	std := model.SeriesStd(s.Key.ID())

	history := make([]float64, len(s.Quantities))
	copy(history, s.Quantities)

	// The first prediction reuses the last observed row's engineered
	// features; only the calendar slots change.
	var features [demand.NumFeatures]float64
	features[demand.FeatAvgFootfall] = s.AvgFootfall
	s.LastFeatures(&features)

	records := make([]domain.ForecastRecord, 0, horizonDays)
	lastDate := s.LastDate()
	for i := 0; i < horizonDays; i++ {
		date := lastDate.AddDate(0, 0, i+1)
		demand.CalendarFeatures(date, &features)

		pred := math.Max(0, model.GBT.Predict(features[:]))
		lower := math.Max(0, pred-zScore95*std)
		upper := pred + zScore95*std

		records = append(records, domain.ForecastRecord{
			Date:            date,
			LocationID:      s.Key.LocationID,
			Region:          s.Region,
			ProductID:       s.Key.ProductID,
			Segment:         s.Key.Segment,
			PredictedDemand: pred,
			LowerBound:      lower,
			UpperBound:      upper,
		})

		advanceLags(&features, history, i, pred)
		history = append(history, pred)
	}

	return records
}

// advanceLags updates the lag and rolling slots after step's prediction,
// feeding the step that follows. history is the series before that
// prediction is appended. Past the first step the long lags hold at
// offsets 6 and 13 of the growing series, so the lag-7 input walks the
// uneven tail offsets -8, -7, -5, -4, -3, -2, -1 across a week.
func advanceLags(features *[demand.NumFeatures]float64, history []float64, step int, pred float64) {
	if step == 0 {
		features[demand.FeatLag1] = tailLag(history, 1)
		features[demand.FeatLag7] = tailLag(history, 7)
		features[demand.FeatLag14] = tailLag(history, 14)
	} else {
		features[demand.FeatLag1] = pred
		features[demand.FeatLag7] = tailLag(history, 6)
		features[demand.FeatLag14] = tailLag(history, 13)
	}
	features[demand.FeatRollingMean7] = pred
	features[demand.FeatRollingMean14] = pred
}

// tailLag returns the value offset days back from the end, or 0 when the
// history is shorter than the offset.
func tailLag(history []float64, offset int) float64 {
	if len(history) < offset {
		return 0
	}
	return history[len(history)-offset]
}

// scoreConfidence assigns each record a confidence in [0.30, 0.95] from the
// batch-normalized relative width of its interval. Wider intervals relative
// to the predicted level mean lower confidence. When every record has the
// same relative width there is nothing to rank, so all get the midpoint.
func scoreConfidence(records []domain.ForecastRecord) {
	if len(records) == 0 {
		return
	}

	uncertainty := make([]float64, len(records))
	minU, maxU := math.Inf(1), math.Inf(-1)
	for i := range records {
		u := (records[i].UpperBound - records[i].LowerBound) / (records[i].PredictedDemand + 1)
		uncertainty[i] = u
		if u < minU {
			minU = u
		}
		if u > maxU {
			maxU = u
		}
	}

	span := maxU - minU
	for i := range records {
		norm := 0.5
		if span > 0 {
			norm = (uncertainty[i] - minU) / span
		}
		records[i].ConfidenceScore = round2(confidenceCeiling - norm*confidenceSpan)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package forecast trains a gradient-boosted demand model on engineered
// feature rows and produces a recursive multi-day forecast with
// per-series confidence scores.
package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/optilens/demand-engine/internal/demand"
)

// Model is the immutable trained artifact: the boosted ensemble, validation
// metrics, and the per-series residual spread used for interval width.
// Built once per batch run and passed by reference into forecasting.
type Model struct {
	GBT *GBT

	// ResidualStd maps series_id to the standard deviation of that
	// series' validation residuals. Series with fewer than two validation
	// points are absent; GlobalResidualStd is the fallback.
	ResidualStd       map[string]float64
	GlobalResidualStd float64

	RMSE           float64
	MAE            float64
	TrainRows      int
	ValidationRows int
	ValidationFrom time.Time
}

// SeriesStd returns the residual std for a series, falling back to the
// global validation spread when the series was too thin to estimate.
func (m *Model) SeriesStd(seriesID string) float64 {
	if std, ok := m.ResidualStd[seriesID]; ok {
		return std
	}
	return m.GlobalResidualStd
}

// Train fits the model on all rows strictly before the validation window
// and evaluates on the trailing validationDays. The split is chronological
// and never shuffled. Metrics are informational only.
func Train(ds *demand.Dataset, validationDays int, cfg Config) (*Model, error) {
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("no demand history to train on")
	}
	if validationDays <= 0 {
		validationDays = 14
	}

	valStart := ds.MaxDate.AddDate(0, 0, -validationDays)

	var (
		trainX [][]float64
		trainY []float64
		valX   [][]float64
		valY   []float64
		valKey []string
	)
	for i := range ds.Rows {
		row := &ds.Rows[i]
		if row.Date.Before(valStart) {
			trainX = append(trainX, row.Features[:])
			trainY = append(trainY, row.DailyQty)
		} else {
			valX = append(valX, row.Features[:])
			valY = append(valY, row.DailyQty)
			valKey = append(valKey, row.Key.ID())
		}
	}

	if len(trainY) == 0 {
		return nil, fmt.Errorf("no training rows before %s; history shorter than the validation window", valStart.Format("2006-01-02"))
	}

	model := &Model{
		GBT:               FitGBT(trainX, trainY, cfg),
		ResidualStd:       make(map[string]float64),
		GlobalResidualStd: 1.0,
		TrainRows:         len(trainY),
		ValidationRows:    len(valY),
		ValidationFrom:    valStart,
	}

	if len(valY) == 0 {
		return model, nil
	}

	residuals := make([]float64, len(valY))
	bySeries := make(map[string][]float64)
	var sqSum, absSum float64
	for i := range valY {
		pred := model.GBT.Predict(valX[i])
		res := valY[i] - pred
		residuals[i] = res
		sqSum += res * res
		absSum += math.Abs(res)
		bySeries[valKey[i]] = append(bySeries[valKey[i]], res)
	}

	model.RMSE = math.Sqrt(sqSum / float64(len(valY)))
	model.MAE = absSum / float64(len(valY))
	model.GlobalResidualStd = stat.PopStdDev(residuals, nil)

	for seriesID, res := range bySeries {
		if len(res) < 2 {
			continue
		}
		model.ResidualStd[seriesID] = stat.StdDev(res, nil)
	}

	return model, nil
}

package demand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/demand-engine/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ordersFor(loc, prod, seg, region string, start string, quantities ...float64) []domain.Order {
	base := day(start)
	orders := make([]domain.Order, len(quantities))
	for i, q := range quantities {
		orders[i] = domain.Order{
			Date:       base.AddDate(0, 0, i),
			LocationID: loc,
			ProductID:  prod,
			Region:     region,
			Segment:    seg,
			Quantity:   q,
		}
	}
	return orders
}

func TestDayOfWeekMondayZero(t *testing.T) {
	assert.Equal(t, 0, DayOfWeek(day("2024-01-01"))) // Monday
	assert.Equal(t, 6, DayOfWeek(day("2024-01-07"))) // Sunday
}

func TestBuildAggregatesDailyQuantities(t *testing.T) {
	orders := []domain.Order{
		{Date: day("2024-01-01"), LocationID: "L1", ProductID: "P1", Segment: "near", Region: "east", Quantity: 3},
		{Date: day("2024-01-01"), LocationID: "L1", ProductID: "P1", Segment: "near", Region: "east", Quantity: 4},
		{Date: day("2024-01-02"), LocationID: "L1", ProductID: "P1", Segment: "near", Region: "east", Quantity: 5},
	}

	ds := Build(orders, nil, nil)
	require.Len(t, ds.Keys, 1)
	s := ds.Series[ds.Keys[0]]
	assert.Equal(t, []float64{7, 5}, s.Quantities)
	assert.Equal(t, day("2024-01-02"), ds.MaxDate)
}

func TestBuildFeaturesNeverSeeOwnTarget(t *testing.T) {
	orders := ordersFor("L1", "P1", "near", "east", "2024-01-01",
		10, 20, 30, 40, 50, 60, 70, 80)

	ds := Build(orders, nil, nil)
	require.Len(t, ds.Rows, 8)

	// First observation has no history at all.
	first := ds.Rows[0]
	assert.Zero(t, first.Features[FeatLag1])
	assert.Zero(t, first.Features[FeatLag7])
	assert.Zero(t, first.Features[FeatLag14])
	assert.Zero(t, first.Features[FeatRollingMean7])
	assert.Zero(t, first.Features[FeatRollingMean14])

	// Second row sees only the first day's quantity.
	second := ds.Rows[1]
	assert.Equal(t, 10.0, second.Features[FeatLag1])
	assert.Equal(t, 10.0, second.Features[FeatRollingMean7])

	// Eighth row: lag 7 reaches back to day one; the rolling-7 window
	// covers days 1..7 and excludes day 8 itself.
	eighth := ds.Rows[7]
	assert.Equal(t, 70.0, eighth.Features[FeatLag1])
	assert.Equal(t, 10.0, eighth.Features[FeatLag7])
	assert.Zero(t, eighth.Features[FeatLag14])
	assert.Equal(t, 40.0, eighth.Features[FeatRollingMean7])
}

func TestBuildShortWindowRollingMean(t *testing.T) {
	orders := ordersFor("L1", "P1", "near", "east", "2024-01-01", 10, 20, 30)

	ds := Build(orders, nil, nil)
	third := ds.Rows[2]
	// Only two prior observations exist, so the window shrinks.
	assert.Equal(t, 15.0, third.Features[FeatRollingMean7])
	assert.Equal(t, 15.0, third.Features[FeatRollingMean14])
}

func TestBuildJoinsLocationAttributes(t *testing.T) {
	orders := ordersFor("L1", "P1", "near", "", "2024-01-01", 5)
	locations := []domain.Location{
		{LocationID: "L1", Region: "west", Tier: "metro", AvgFootfall: 1200},
	}

	ds := Build(orders, nil, locations)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "west", ds.Rows[0].Region)
	assert.Equal(t, 1200.0, ds.Rows[0].Features[FeatAvgFootfall])
}

func TestBuildDeterministicKeyOrder(t *testing.T) {
	orders := append(
		ordersFor("L2", "P1", "near", "east", "2024-01-01", 1),
		ordersFor("L1", "P9", "far", "west", "2024-01-01", 2)...,
	)

	a := Build(orders, nil, nil)
	b := Build(orders, nil, nil)
	assert.Equal(t, a.Keys, b.Keys)
	require.Len(t, a.Keys, 2)
	assert.Equal(t, "L1", a.Keys[0].LocationID)
}

func TestLastFeaturesMatchEngineeredRow(t *testing.T) {
	s := &Series{Quantities: make([]float64, 20)}
	for i := range s.Quantities {
		s.Quantities[i] = float64(100 + i)
	}

	var features [NumFeatures]float64
	s.LastFeatures(&features)

	assert.Equal(t, 118.0, features[FeatLag1])
	assert.Equal(t, 112.0, features[FeatLag7])
	assert.Equal(t, 105.0, features[FeatLag14])
	assert.Equal(t, 115.0, features[FeatRollingMean7])
	assert.Equal(t, 111.5, features[FeatRollingMean14])
}

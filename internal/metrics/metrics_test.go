package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg)
	var _ forecast.Observer = o

	s, err := grid.Parse("2024010100")
	require.NoError(t, err)

	o.FetchAttempted(s, nil)
	o.FetchAttempted(s, errors.New("404"))
	o.FetchAttempted(s, errors.New("404"))
	o.Converted(s, nil)
	o.HarvestCompleted(forecast.HarvestReport{Outcome: forecast.OutcomeHarvested, Converted: []grid.Stamp{s}, Duration: time.Second})
	o.SweepCompleted(forecast.SweepReport{Deleted: 3, Remaining: 56})
	o.SweepCompleted(forecast.SweepReport{Deleted: 1, Remaining: 57})
	o.SweepCompleted(forecast.SweepReport{Deleted: 2, Remaining: -1})
	o.LookupResolved(forecast.QueryLatest, nil)
	o.LookupResolved(forecast.QueryNearest, forecast.ErrNoDataWithinLimit)
	o.LookupResolved(forecast.QueryNearest, forecast.ErrRejectedQuery)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.fetches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.fetches.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.conversions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.harvests.WithLabelValues("harvested")))
	assert.Equal(t, float64(s.Time().Unix()), testutil.ToFloat64(o.latestHarvested))
	assert.Equal(t, 6.0, testutil.ToFloat64(o.deleted))
	assert.Equal(t, 57.0, testutil.ToFloat64(o.servable))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.lookups.WithLabelValues("latest", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.lookups.WithLabelValues("nearest", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.lookups.WithLabelValues("nearest", "rejected")))
}

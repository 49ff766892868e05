// Package metrics exposes harvest, retention and lookup events as Prometheus
// collectors.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

// Observer implements forecast.Observer.
type Observer struct {
	fetches         *prometheus.CounterVec
	conversions     *prometheus.CounterVec
	harvests        *prometheus.CounterVec
	harvestDuration prometheus.Histogram
	latestHarvested prometheus.Gauge
	deleted         prometheus.Counter
	servable        prometheus.Gauge
	lookups         *prometheus.CounterVec
}

// NewObserver registers the collectors with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wind_harvest_fetches_total",
			Help: "Snapshot retrieval attempts by result.",
		}, []string{"result"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wind_harvest_conversions_total",
			Help: "Raw to servable conversions by result.",
		}, []string{"result"}),
		harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wind_harvest_cycles_total",
			Help: "Harvest cycles by outcome.",
		}, []string{"outcome"}),
		harvestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wind_harvest_cycle_duration_seconds",
			Help:    "Harvest cycle duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		latestHarvested: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wind_harvest_latest_converted_timestamp_seconds",
			Help: "Unix time of the newest stamp converted by the last productive cycle.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wind_harvest_artifacts_deleted_total",
			Help: "Servable artifacts removed by the retention sweep.",
		}),
		servable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wind_harvest_servable_artifacts",
			Help: "Servable artifacts on disk after the last sweep.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wind_harvest_lookups_total",
			Help: "Lookups by query kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(
		o.fetches, o.conversions, o.harvests, o.harvestDuration,
		o.latestHarvested, o.deleted, o.servable, o.lookups,
	)
	return o
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (o *Observer) FetchAttempted(_ grid.Stamp, err error) {
	o.fetches.WithLabelValues(result(err)).Inc()
}

func (o *Observer) Converted(_ grid.Stamp, err error) {
	o.conversions.WithLabelValues(result(err)).Inc()
}

func (o *Observer) HarvestCompleted(r forecast.HarvestReport) {
	o.harvests.WithLabelValues(string(r.Outcome)).Inc()
	o.harvestDuration.Observe(r.Duration.Seconds())
	if len(r.Converted) > 0 {
		o.latestHarvested.Set(float64(r.Converted[0].Time().Unix()))
	}
}

func (o *Observer) SweepCompleted(r forecast.SweepReport) {
	o.deleted.Add(float64(r.Deleted))
	if r.Remaining >= 0 {
		o.servable.Set(float64(r.Remaining))
	}
}

func (o *Observer) LookupResolved(kind forecast.QueryKind, err error) {
	k := "latest"
	if kind == forecast.QueryNearest {
		k = "nearest"
	}
	res := "found"
	switch {
	case err == nil:
	case errors.Is(err, forecast.ErrRejectedQuery):
		res = "rejected"
	case errors.Is(err, forecast.ErrNotFound), errors.Is(err, forecast.ErrNoDataWithinLimit):
		res = "not_found"
	default:
		res = "error"
	}
	o.lookups.WithLabelValues(k, res).Inc()
}

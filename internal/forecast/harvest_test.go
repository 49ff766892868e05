package forecast_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

var harvestNow = time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)

func newEngine(st forecast.Store, f forecast.Fetcher, c forecast.Converter, horizonDays int, obs forecast.Observer) *forecast.Engine {
	return forecast.NewEngine(st, f, c, forecast.EngineConfig{
		HorizonDays: horizonDays,
		Clock:       fixedClock(harvestNow),
		Observer:    obs,
	})
}

func TestHarvestWalksBackUntilPublished(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-3))

	fetcher := newFakeFetcher()
	fetcher.failFor(errNotPublished, s0, s0.Step(-1))
	conv := &fakeConverter{}
	obs := &countingObserver{}

	report, err := newEngine(st, fetcher, conv, 30, obs).Harvest(context.Background(), harvestNow)
	require.NoError(t, err)

	assert.Equal(t, strs(s0, s0.Step(-1), s0.Step(-2)), fetcher.Calls())
	assert.Equal(t, strs(s0.Step(-2)), conv.Calls())
	assert.Equal(t, strs(s0.Step(-2)), strs(report.Converted...))
	assert.Equal(t, forecast.OutcomeHarvested, report.Outcome)
	assert.Equal(t, 3, report.Fetches)
	assert.NotEmpty(t, report.CycleID)

	ok, err := st.Exists(s0.Step(-2))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 3, obs.fetches)
	assert.Equal(t, 1, obs.converted)
	require.Len(t, obs.harvests, 1)
}

func TestHarvestBackfillsUntilExistingStamp(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-3), s0.Step(-5))

	fetcher := newFakeFetcher()
	conv := &fakeConverter{}

	report, err := newEngine(st, fetcher, conv, 30, nil).Harvest(context.Background(), harvestNow)
	require.NoError(t, err)

	want := strs(s0, s0.Step(-1), s0.Step(-2))
	assert.Equal(t, want, fetcher.Calls())
	assert.Equal(t, want, strs(report.Converted...))
	assert.Equal(t, forecast.OutcomeHarvested, report.Outcome)

	// The gap below the existing stamp is left alone.
	ok, err := st.Exists(s0.Step(-4))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHarvestIsIdempotent(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-1))

	fetcher := newFakeFetcher()
	conv := &fakeConverter{}
	engine := newEngine(st, fetcher, conv, 30, nil)

	first, err := engine.Harvest(context.Background(), harvestNow)
	require.NoError(t, err)
	assert.Equal(t, forecast.OutcomeHarvested, first.Outcome)
	assert.Len(t, fetcher.Calls(), 1)

	second, err := engine.Harvest(context.Background(), harvestNow)
	require.NoError(t, err)
	assert.Equal(t, forecast.OutcomeUpToDate, second.Outcome)
	assert.Equal(t, 0, second.Fetches)
	assert.Len(t, fetcher.Calls(), 1)
	assert.Len(t, conv.Calls(), 1)
}

func TestHarvestStopsAtHorizon(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)

	fetcher := newFakeFetcher()
	var all []grid.Stamp
	for i := 0; i < 20; i++ {
		all = append(all, s0.Step(-i))
	}
	fetcher.failFor(errNotPublished, all...)

	report, err := newEngine(st, fetcher, &fakeConverter{}, 2, nil).Harvest(context.Background(), harvestNow)
	require.NoError(t, err)
	assert.Equal(t, forecast.OutcomeHorizonExhausted, report.Outcome)

	// Stamps no older than two days: 12:00 on the 10th back to 18:00 on the 8th.
	assert.Len(t, fetcher.Calls(), 8)
	assert.Equal(t, s0.Step(-7).String(), fetcher.Calls()[7])
}

func TestHarvestBackfillBoundedByHorizon(t *testing.T) {
	st := newFileStore(t)
	fetcher := newFakeFetcher()

	report, err := newEngine(st, fetcher, &fakeConverter{}, 1, nil).Harvest(context.Background(), harvestNow)
	require.NoError(t, err)
	assert.Equal(t, forecast.OutcomeHorizonExhausted, report.Outcome)
	assert.Len(t, report.Converted, 4)

	stamps, err := st.ListServable()
	require.NoError(t, err)
	assert.Len(t, stamps, 4)
}

func TestHarvestConversionFailureIsNotRetriedInCycle(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-1))

	fetcher := newFakeFetcher()
	conv := &fakeConverter{err: errors.New("grib2json: exit status 1")}
	engine := newEngine(st, fetcher, conv, 30, nil)

	report, err := engine.Harvest(context.Background(), harvestNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrConversion)
	assert.Equal(t, forecast.OutcomeConversionFailed, report.Outcome)
	assert.Len(t, conv.Calls(), 1)

	raw, err := st.RawExists(s0)
	require.NoError(t, err)
	assert.False(t, raw)
}

func TestHarvestRefetchesAfterConversionFailure(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-1))

	fetcher := newFakeFetcher()
	conv := &fakeConverter{err: errors.New("grib2json: truncated message")}
	engine := newEngine(st, fetcher, conv, 30, nil)

	_, err := engine.Harvest(context.Background(), harvestNow)
	require.ErrorIs(t, err, forecast.ErrConversion)

	// The corrupt download is replaced by a fresh one.
	conv.err = nil
	report, err := engine.Harvest(context.Background(), harvestNow)
	require.NoError(t, err)
	assert.Equal(t, forecast.OutcomeHarvested, report.Outcome)
	assert.Equal(t, 1, report.Fetches)
	assert.Equal(t, strs(s0, s0), fetcher.Calls())
	assert.Equal(t, strs(s0), strs(report.Converted...))
}

// racingStore publishes every raw artifact as soon as it is written, the way
// a concurrent cycle finishing the same stamp would.
type racingStore struct {
	forecast.Store
}

func (r racingStore) WriteRaw(s grid.Stamp, data []byte) error {
	if err := r.Store.WriteRaw(s, data); err != nil {
		return err
	}
	return r.Store.ConvertRawToServable(context.Background(), s, &fakeConverter{})
}

func TestHarvestDoesNotReportStampsConvertedElsewhere(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)
	seed(t, st, s0.Step(-1))

	conv := &fakeConverter{}
	obs := &countingObserver{}
	report, err := newEngine(racingStore{Store: st}, newFakeFetcher(), conv, 30, obs).Harvest(context.Background(), harvestNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Fetches)
	assert.Empty(t, report.Converted)
	assert.Empty(t, conv.Calls())
	assert.Equal(t, 0, obs.converted)

	ok, err := st.Exists(s0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHarvestAbortsWhenFeedUnavailable(t *testing.T) {
	st := newFileStore(t)
	s0 := grid.Of(harvestNow)

	fetcher := newFakeFetcher()
	fetcher.failFor(fmt.Errorf("%w: circuit breaker open", forecast.ErrFeedUnavailable), s0)

	report, err := newEngine(st, fetcher, &fakeConverter{}, 30, nil).Harvest(context.Background(), harvestNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrFeedUnavailable)
	assert.Equal(t, forecast.OutcomeAborted, report.Outcome)
	assert.Len(t, fetcher.Calls(), 1)
}

func TestHarvestHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newFakeFetcher()
	report, err := newEngine(newFileStore(t), fetcher, &fakeConverter{}, 30, nil).Harvest(ctx, harvestNow)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, forecast.OutcomeAborted, report.Outcome)
	assert.Empty(t, fetcher.Calls())
}

func TestHarvestAnchoredInThePast(t *testing.T) {
	st := newFileStore(t)
	anchor := grid.Of(harvestNow).Step(-8)
	seed(t, st, anchor.Step(-1))

	fetcher := newFakeFetcher()
	report, err := newEngine(st, fetcher, &fakeConverter{}, 30, nil).Harvest(context.Background(), anchor.Time())
	require.NoError(t, err)
	assert.Equal(t, strs(anchor), fetcher.Calls())
	assert.Equal(t, anchor, report.Anchor)
}

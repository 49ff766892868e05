package forecast_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
	"github.com/i474232898/wind-harvest/internal/store"
)

var errNotPublished = errors.New("status 404")

// fakeFetcher fails for the stamps listed in failures and records every call.
type fakeFetcher struct {
	mu       sync.Mutex
	failures map[string]error
	calls    []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{failures: make(map[string]error)}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) failFor(err error, stamps ...grid.Stamp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range stamps {
		f.failures[s.String()] = err
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, s grid.Stamp) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s.String())
	if err, ok := f.failures[s.String()]; ok {
		return nil, err
	}
	return []byte("grib:" + s.String()), nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeConverter copies the raw artifact, or fails when err is set.
type fakeConverter struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (c *fakeConverter) Convert(_ context.Context, s grid.Stamp, rawPath, outPath string) error {
	c.mu.Lock()
	c.calls = append(c.calls, s.String())
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func (c *fakeConverter) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func fixedClock(t time.Time) forecast.Clock {
	return forecast.ClockFunc(func() time.Time { return t })
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewFileStore(filepath.Join(dir, "grib-data"), filepath.Join(dir, "json-data"), "f000")
	require.NoError(t, err)
	return s
}

// seed makes each stamp servable.
func seed(t *testing.T, s forecast.Store, stamps ...grid.Stamp) {
	t.Helper()
	for _, st := range stamps {
		require.NoError(t, s.WriteRaw(st, []byte("seed:"+st.String())))
		require.NoError(t, s.ConvertRawToServable(context.Background(), st, &fakeConverter{}))
	}
}

func strs(stamps ...grid.Stamp) []string {
	out := make([]string, 0, len(stamps))
	for _, s := range stamps {
		out = append(out, s.String())
	}
	return out
}

// countingObserver tallies events.
type countingObserver struct {
	forecast.NopObserver
	mu        sync.Mutex
	fetches   int
	converted int
	harvests  []forecast.HarvestReport
	sweeps    []forecast.SweepReport
	lookups   map[forecast.QueryKind]int
}

func (o *countingObserver) FetchAttempted(grid.Stamp, error) {
	o.mu.Lock()
	o.fetches++
	o.mu.Unlock()
}

func (o *countingObserver) Converted(_ grid.Stamp, err error) {
	o.mu.Lock()
	if err == nil {
		o.converted++
	}
	o.mu.Unlock()
}

func (o *countingObserver) HarvestCompleted(r forecast.HarvestReport) {
	o.mu.Lock()
	o.harvests = append(o.harvests, r)
	o.mu.Unlock()
}

func (o *countingObserver) SweepCompleted(r forecast.SweepReport) {
	o.mu.Lock()
	o.sweeps = append(o.sweeps, r)
	o.mu.Unlock()
}

func (o *countingObserver) LookupResolved(kind forecast.QueryKind, _ error) {
	o.mu.Lock()
	if o.lookups == nil {
		o.lookups = make(map[forecast.QueryKind]int)
	}
	o.lookups[kind]++
	o.mu.Unlock()
}

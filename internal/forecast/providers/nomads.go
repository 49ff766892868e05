package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

// DefaultNOMADSURL is the GFS 1.00 degree grib filter service.
const DefaultNOMADSURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_1p00.pl"

// maxGribSize caps the size of a downloaded subset.
const maxGribSize = 64 << 20

var gribMagic = []byte("GRIB")

// NOMADSFetcher downloads the 10 m wind components of the GFS analysis
// (f000) for a run.
type NOMADSFetcher struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewNOMADSFetcher implements forecast.Fetcher against the NOMADS filter
// service at baseURL. limiter may be nil.
func NewNOMADSFetcher(client *http.Client, baseURL string, limiter *rate.Limiter) *NOMADSFetcher {
	if baseURL == "" {
		baseURL = DefaultNOMADSURL
	}
	return &NOMADSFetcher{
		name:    "nomads",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			Limiter: limiter,
		},
		circuit: newCircuitBreaker("nomads"),
	}
}

func (p *NOMADSFetcher) Name() string {
	return p.name
}

// Query returns the filter parameters selecting UGRD and VGRD at 10 m above
// ground on the whole globe for the run at s.
func Query(s grid.Stamp) url.Values {
	values := url.Values{}
	values.Set("file", fmt.Sprintf("gfs.t%sz.pgrb2.1p00.f000", s.Hour()))
	values.Set("lev_10_m_above_ground", "on")
	values.Set("lev_surface", "off")
	values.Set("var_TMP", "off")
	values.Set("var_UGRD", "on")
	values.Set("var_VGRD", "on")
	values.Set("leftlon", "0")
	values.Set("rightlon", "360")
	values.Set("toplat", "90")
	values.Set("bottomlat", "-90")
	values.Set("dir", fmt.Sprintf("/gfs.%s/%s/atmos", s.Date(), s.Hour()))
	return values
}

func (p *NOMADSFetcher) Fetch(ctx context.Context, s grid.Stamp) ([]byte, error) {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", p.baseURL, Query(s).Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if errors.Is(err, forecast.ErrFeedUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", forecast.ErrTransport, p.name, s, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGribSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %v", forecast.ErrTransport, p.name, s, err)
	}
	if !bytes.HasPrefix(data, gribMagic) {
		return nil, fmt.Errorf("%w: %s %s: response is not a GRIB message", forecast.ErrTransport, p.name, s)
	}
	return data, nil
}

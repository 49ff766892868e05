package httpapi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

const (
	// The latest snapshot changes every few hours.
	latestCacheControl = "public, max-age=300"
	// Past snapshots never change.
	nearestCacheControl = "public, max-age=86400"
)

var validate = validator.New()

// Resolver maps a query to a servable stamp.
type Resolver interface {
	Resolve(q forecast.Query) (grid.Stamp, error)
}

// PayloadReader returns the servable artifact for a stamp.
type PayloadReader interface {
	ReadServable(s grid.Stamp) ([]byte, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, resolver Resolver, payloads PayloadReader) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Wind forecast snapshots. Use /latest or /nearest?timeIso=ISO_TIME_STRING&searchLimit=DAYS")
	})

	app.Get("/pulse", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/latest", func(c *fiber.Ctx) error {
		return sendSnapshot(c, resolver, payloads, forecast.Latest(), latestCacheControl)
	})

	app.Get("/nearest", func(c *fiber.Ctx) error {
		var req nearestQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return sendSnapshot(c, resolver, payloads, req.toQuery(), nearestCacheControl)
	})
}

// RegisterMetrics exposes g in the Prometheus text format on /metrics.
func RegisterMetrics(app *fiber.App, g prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

func sendSnapshot(c *fiber.Ctx, resolver Resolver, payloads PayloadReader, q forecast.Query, cacheControl string) error {
	stamp, err := resolver.Resolve(q)
	if err != nil {
		return lookupError(err)
	}
	data, err := payloads.ReadServable(stamp)
	if err != nil {
		return lookupError(err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderCacheControl, cacheControl)
	c.Set("X-Forecast-Stamp", stamp.String())
	return c.Send(data)
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrRejectedQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, forecast.ErrNoDataWithinLimit):
		return fiber.NewError(fiber.StatusNotFound, "no data within searchLimit")
	case errors.Is(err, forecast.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no data available")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load forecast snapshot")
	}
}

// nearestQuery holds query parameters for the nearest endpoint.
type nearestQuery struct {
	Time        time.Time `validate:"required"`
	SearchLimit float64   `validate:"gte=0"` // days; 0 means no limit
}

func (q *nearestQuery) bind(c *fiber.Ctx) error {
	timeStr := c.Query("timeIso")
	if timeStr == "" {
		return errors.New("invalid params, expecting: timeIso=ISO_TIME_STRING")
	}
	ts, err := parseTime(timeStr)
	if err != nil {
		return err
	}
	q.Time = ts

	if limitStr := c.Query("searchLimit"); limitStr != "" {
		limit, err := strconv.ParseFloat(limitStr, 64)
		if err != nil {
			return fmt.Errorf("invalid searchLimit %q: expecting a number of days", limitStr)
		}
		q.SearchLimit = limit
	}
	return nil
}

func (q nearestQuery) toQuery() forecast.Query {
	// The resolver caps the walk at its horizon; only guard the conversion.
	limit := time.Duration(math.MaxInt64)
	if days := q.SearchLimit * float64(24*time.Hour); days < float64(math.MaxInt64) {
		limit = time.Duration(days)
	}
	return forecast.Nearest(q.Time, limit)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts ISO 8601 (UTC when no offset is given) or Unix seconds.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timeIso %q: use ISO 8601 or unix seconds", s)
}

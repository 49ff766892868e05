package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/wind-harvest/internal/grid"
)

// DefaultHorizonDays bounds how far back a harvest or lookup walk may go.
const DefaultHorizonDays = 30

// EngineConfig holds the optional collaborators of an Engine.
type EngineConfig struct {
	HorizonDays int
	Clock       Clock
	Logger      *zap.Logger
	Observer    Observer
}

// Engine drives retrieval and conversion of snapshots, walking backward over
// the grid when the newest interval is not published yet and backfilling
// older gaps after each successful conversion.
type Engine struct {
	store     Store
	fetcher   Fetcher
	converter Converter

	horizonDays float64
	clock       Clock
	log         *zap.Logger
	observer    Observer

	// Collapses concurrent cycles working on the same stamp.
	inflight singleflight.Group
}

// NewEngine creates a new Engine.
func NewEngine(store Store, fetcher Fetcher, converter Converter, cfg EngineConfig) *Engine {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Engine{
		store:       store,
		fetcher:     fetcher,
		converter:   converter,
		horizonDays: float64(cfg.HorizonDays),
		clock:       cfg.Clock,
		log:         cfg.Logger.Named("harvest"),
		observer:    cfg.Observer,
	}
}

type scanState int

const (
	scanFetched scanState = iota
	scanExists
	scanHorizon
	scanAborted
)

// Harvest runs one cycle anchored at the stamp containing at. The horizon is
// measured from the clock, not from at. Horizon exhaustion is a normal
// outcome and returns a nil error; conversion and store failures stop the
// cycle and are returned.
func (e *Engine) Harvest(ctx context.Context, at time.Time) (HarvestReport, error) {
	started := time.Now()
	now := e.clock.Now()
	anchor := grid.Of(at)

	report := HarvestReport{
		CycleID: uuid.NewString(),
		Anchor:  anchor,
	}
	log := e.log.With(zap.String("cycle", report.CycleID))
	log.Debug("harvest started", zap.Stringer("anchor", anchor))

	var err error
	for {
		var (
			cursor grid.Stamp
			state  scanState
		)
		cursor, state, err = e.scan(ctx, anchor, now, &report, log)
		if state != scanFetched {
			report.Outcome = terminalOutcome(state, len(report.Converted))
			break
		}

		var converted bool
		if converted, err = e.convert(ctx, cursor); err != nil {
			if errors.Is(err, ErrStore) {
				report.Outcome = OutcomeAborted
			} else {
				report.Outcome = OutcomeConversionFailed
			}
			break
		}
		if converted {
			report.Converted = append(report.Converted, cursor)
			log.Info("snapshot converted", zap.Stringer("stamp", cursor))
		}

		prev := cursor.Step(-1)
		var ok bool
		ok, err = e.store.Exists(prev)
		if err != nil {
			report.Outcome = OutcomeAborted
			break
		}
		if ok {
			log.Debug("older snapshot present, history is contiguous", zap.Stringer("stamp", prev))
			report.Outcome = OutcomeHarvested
			break
		}
		log.Info("attempting to harvest older data", zap.Stringer("stamp", prev))
		anchor = prev
	}

	report.Duration = time.Since(started)
	fields := []zap.Field{
		zap.String("outcome", string(report.Outcome)),
		zap.Int("fetches", report.Fetches),
		zap.Int("converted", len(report.Converted)),
		zap.Duration("took", report.Duration),
	}
	if err != nil {
		log.Error("harvest stopped", append(fields, zap.Error(err))...)
	} else {
		log.Info("harvest finished", fields...)
	}
	e.observer.HarvestCompleted(report)
	return report, err
}

func terminalOutcome(state scanState, converted int) HarvestOutcome {
	switch state {
	case scanExists:
		if converted > 0 {
			return OutcomeHarvested
		}
		return OutcomeUpToDate
	case scanHorizon:
		return OutcomeHorizonExhausted
	default:
		return OutcomeAborted
	}
}

// scan walks backward from anchor until a raw artifact has been captured,
// a servable artifact already exists, or the horizon is passed.
func (e *Engine) scan(ctx context.Context, anchor grid.Stamp, now time.Time, report *HarvestReport, log *zap.Logger) (grid.Stamp, scanState, error) {
	for cursor := anchor; ; cursor = cursor.Step(-1) {
		if err := ctx.Err(); err != nil {
			return cursor, scanAborted, err
		}
		if cursor.AgeDays(now) > e.horizonDays {
			log.Info("hit horizon, harvest complete or there is a gap in the data",
				zap.Stringer("stamp", cursor), zap.Float64("horizonDays", e.horizonDays))
			return cursor, scanHorizon, nil
		}

		ok, err := e.store.Exists(cursor)
		if err != nil {
			return cursor, scanAborted, fmt.Errorf("check %s: %w", cursor, err)
		}
		if ok {
			log.Debug("already have snapshot, not looking further", zap.Stringer("stamp", cursor))
			return cursor, scanExists, nil
		}

		fetched, err := e.capture(ctx, cursor)
		if fetched {
			report.Fetches++
		}
		switch {
		case err == nil:
			return cursor, scanFetched, nil
		case errors.Is(err, ErrStore), errors.Is(err, ErrFeedUnavailable), ctx.Err() != nil:
			return cursor, scanAborted, fmt.Errorf("capture %s: %w", cursor, err)
		default:
			log.Debug("snapshot not available, trying previous interval",
				zap.Stringer("stamp", cursor), zap.Error(err))
		}
	}
}

// capture makes sure a raw artifact exists for s, fetching it only when it
// was not captured by an earlier cycle.
func (e *Engine) capture(ctx context.Context, s grid.Stamp) (fetched bool, err error) {
	v, err, _ := e.inflight.Do("capture:"+s.String(), func() (interface{}, error) {
		ok, err := e.store.RawExists(s)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}

		data, err := e.fetcher.Fetch(ctx, s)
		e.observer.FetchAttempted(s, err)
		if err != nil {
			return true, err
		}
		return true, e.store.WriteRaw(s, data)
	})
	fetched, _ = v.(bool)
	return fetched, err
}

// convert publishes s and reports whether this call did the conversion.
// Callers that joined an in-flight conversion of s report false.
func (e *Engine) convert(ctx context.Context, s grid.Stamp) (bool, error) {
	var converted bool
	_, err, _ := e.inflight.Do("convert:"+s.String(), func() (interface{}, error) {
		// A concurrent cycle may have finished this stamp already.
		ok, err := e.store.Exists(s)
		if err != nil || ok {
			return nil, err
		}
		err = e.store.ConvertRawToServable(ctx, s, e.converter)
		e.observer.Converted(s, err)
		converted = err == nil
		return nil, err
	})
	if err != nil {
		return false, fmt.Errorf("convert %s: %w", s, err)
	}
	return converted, nil
}

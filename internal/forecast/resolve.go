package forecast

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/wind-harvest/internal/grid"
)

// ResolverConfig holds the optional collaborators of a Resolver.
type ResolverConfig struct {
	// HorizonDays bounds latest lookups and nearest lookups without a
	// search limit.
	HorizonDays int
	Clock       Clock
	Logger      *zap.Logger
	Observer    Observer
}

// Resolver answers lookups by walking the grid against the store. It never
// triggers a harvest and only sees servable artifacts.
type Resolver struct {
	store    Store
	horizon  time.Duration
	clock    Clock
	log      *zap.Logger
	observer Observer
}

// NewResolver creates a new Resolver.
func NewResolver(store Store, cfg ResolverConfig) *Resolver {
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
	return &Resolver{
		store:    store,
		horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		clock:    cfg.Clock,
		log:      cfg.Logger.Named("resolver"),
		observer: cfg.Observer,
	}
}

// Resolve dispatches q to Latest or Nearest.
func (r *Resolver) Resolve(q Query) (grid.Stamp, error) {
	var (
		s   grid.Stamp
		err error
	)
	switch q.Kind {
	case QueryLatest:
		s, err = r.Latest(r.clock.Now())
	case QueryNearest:
		s, err = r.Nearest(q.Target, q.SearchLimit)
	default:
		err = fmt.Errorf("%w: unknown query kind %d", ErrRejectedQuery, q.Kind)
	}
	r.observer.LookupResolved(q.Kind, err)
	return s, err
}

// Latest returns the newest servable stamp at or before now, looking back no
// further than the horizon.
func (r *Resolver) Latest(now time.Time) (grid.Stamp, error) {
	horizonDays := r.horizon.Hours() / 24
	for cursor := grid.Of(now); cursor.AgeDays(now) < horizonDays; cursor = cursor.Step(-1) {
		ok, err := r.store.Exists(cursor)
		if err != nil {
			return grid.Stamp{}, err
		}
		if ok {
			return cursor, nil
		}
		r.log.Debug("snapshot does not exist yet, trying previous interval", zap.Stringer("stamp", cursor))
	}
	return grid.Stamp{}, fmt.Errorf("%w within %s of %s", ErrNotFound, r.horizon, now.Format(time.RFC3339))
}

// Nearest looks for a servable stamp close to target. It walks backward from
// the stamp containing target while the distance to target is below limit;
// if nothing is found it walks forward from the next stamp under the same
// bound. Without a limit only the backward walk runs. Either way no walk goes
// further from target than the horizon.
func (r *Resolver) Nearest(target time.Time, limit time.Duration) (grid.Stamp, error) {
	if target.IsZero() {
		return grid.Stamp{}, fmt.Errorf("%w: expecting timeIso=ISO_TIME_STRING", ErrRejectedQuery)
	}
	if limit < 0 {
		return grid.Stamp{}, fmt.Errorf("%w: searchLimit must not be negative", ErrRejectedQuery)
	}
	target = target.UTC()
	start := grid.Of(target)

	bound := limit
	if limit == 0 || limit > r.horizon {
		bound = r.horizon
	}

	for cursor := start; target.Sub(cursor.Time()) < bound; cursor = cursor.Step(-1) {
		ok, err := r.store.Exists(cursor)
		if err != nil {
			return grid.Stamp{}, err
		}
		if ok {
			return cursor, nil
		}
	}
	if limit == 0 {
		return grid.Stamp{}, fmt.Errorf("%w within %s before %s", ErrNotFound, r.horizon, target.Format(time.RFC3339))
	}

	r.log.Debug("search limit reached going backward, searching forward",
		zap.Time("target", target), zap.Duration("limit", limit))
	for cursor := start.Step(1); cursor.Time().Sub(target) < bound; cursor = cursor.Step(1) {
		ok, err := r.store.Exists(cursor)
		if err != nil {
			return grid.Stamp{}, err
		}
		if ok {
			return cursor, nil
		}
	}
	return grid.Stamp{}, ErrNoDataWithinLimit
}

package forecast

import (
	"time"

	"github.com/i474232898/wind-harvest/internal/grid"
)

// HarvestOutcome describes how a harvest cycle terminated.
type HarvestOutcome string

const (
	// OutcomeUpToDate means the newest reachable stamp was already servable.
	OutcomeUpToDate HarvestOutcome = "up_to_date"
	// OutcomeHarvested means at least one artifact was converted and the
	// backward chain reached an existing artifact.
	OutcomeHarvested HarvestOutcome = "harvested"
	// OutcomeHorizonExhausted means the walk passed the horizon without
	// finding an existing artifact. Not an error.
	OutcomeHorizonExhausted HarvestOutcome = "horizon_exhausted"
	// OutcomeConversionFailed means a conversion failed and the cycle stopped.
	OutcomeConversionFailed HarvestOutcome = "conversion_failed"
	// OutcomeAborted means the cycle stopped on a store error, cancellation
	// or an unavailable feed.
	OutcomeAborted HarvestOutcome = "aborted"
)

// HarvestReport summarizes one harvest cycle.
type HarvestReport struct {
	CycleID   string         `json:"cycleId"`
	Anchor    grid.Stamp     `json:"-"`
	Outcome   HarvestOutcome `json:"outcome"`
	Fetches   int            `json:"fetches"`
	Converted []grid.Stamp   `json:"-"`
	Duration  time.Duration  `json:"duration"`
}

// SweepReport summarizes one retention sweep. Remaining is -1 when the
// store could not be listed after deleting.
type SweepReport struct {
	Deleted   int `json:"deleted"`
	Remaining int `json:"remaining"`
}

// QueryKind selects the lookup strategy.
type QueryKind int

const (
	QueryLatest QueryKind = iota
	QueryNearest
)

// Query is a client lookup request. Target and SearchLimit only apply to
// QueryNearest; a zero SearchLimit means "no explicit limit".
type Query struct {
	Kind        QueryKind
	Target      time.Time
	SearchLimit time.Duration
}

// Latest builds a latest-snapshot query.
func Latest() Query { return Query{Kind: QueryLatest} }

// Nearest builds a nearest-snapshot query.
func Nearest(target time.Time, limit time.Duration) Query {
	return Query{Kind: QueryNearest, Target: target, SearchLimit: limit}
}

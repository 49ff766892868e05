package forecast

import "errors"

var (
	// ErrTransport marks a failed or non-2xx retrieval. The harvest engine
	// treats it as "not published yet" and walks one interval back.
	ErrTransport = errors.New("transport error")

	// ErrFeedUnavailable means the upstream is short-circuited locally
	// (open circuit breaker) and the cycle should stop rather than walk.
	ErrFeedUnavailable = errors.New("forecast feed unavailable")

	// ErrConversion is returned when the raw artifact could not be converted.
	ErrConversion = errors.New("conversion error")

	// ErrStore wraps artifact store I/O failures.
	ErrStore = errors.New("store error")

	// ErrNotFound is returned when no servable artifact exists within the horizon.
	ErrNotFound = errors.New("no data available")

	// ErrNoDataWithinLimit is returned by nearest lookups that exhaust their search limit.
	ErrNoDataWithinLimit = errors.New("no data within searchLimit")

	// ErrRejectedQuery is returned for invalid lookup parameters.
	ErrRejectedQuery = errors.New("invalid query")
)

package forecast

import "github.com/i474232898/wind-harvest/internal/grid"

// Observer receives engine events. Implementations must be safe for
// concurrent use; lookups report from request goroutines.
type Observer interface {
	FetchAttempted(s grid.Stamp, err error)
	Converted(s grid.Stamp, err error)
	HarvestCompleted(r HarvestReport)
	SweepCompleted(r SweepReport)
	LookupResolved(kind QueryKind, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) FetchAttempted(grid.Stamp, error) {}
func (NopObserver) Converted(grid.Stamp, error) {}
func (NopObserver) HarvestCompleted(HarvestReport) {}
func (NopObserver) SweepCompleted(SweepReport) {}
func (NopObserver) LookupResolved(QueryKind, error) {}

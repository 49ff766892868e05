package forecast

import (
	"context"
	"time"

	"github.com/i474232898/wind-harvest/internal/grid"
)

// Fetcher retrieves the raw snapshot published for a stamp
// (e.g. the NOMADS GFS filter service).
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, s grid.Stamp) ([]byte, error)
}

// Converter turns the raw artifact at rawPath into a servable artifact
// written to outPath.
type Converter interface {
	Convert(ctx context.Context, s grid.Stamp, rawPath, outPath string) error
}

// Store is the contract every artifact store must satisfy. Only servable
// artifacts are visible through Exists, ListServable and ReadServable.
type Store interface {
	Exists(s grid.Stamp) (bool, error)
	RawExists(s grid.Stamp) (bool, error)
	WriteRaw(s grid.Stamp, data []byte) error
	ConvertRawToServable(ctx context.Context, s grid.Stamp, conv Converter) error
	ListServable() ([]grid.Stamp, error)
	ReadServable(s grid.Stamp) ([]byte, error)
	// DeleteOlderThan removes servable artifacts whose stamp is more than
	// maxAge before now and returns the stamps it removed.
	DeleteOlderThan(now time.Time, maxAge time.Duration) ([]grid.Stamp, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Package grid models the fixed 6-hourly publication grid of the forecast feed.
package grid

import (
	"fmt"
	"time"
)

// Interval is the spacing between two adjacent stamps.
const Interval = 6 * time.Hour

// Layout is the textual form of a stamp: date followed by the two-digit hour.
const Layout = "2006010215"

// Stamp is a canonical, interval-aligned point in UTC time. The zero value is
// not a valid stamp.
type Stamp struct {
	t time.Time
}

// Of returns the stamp at or immediately before t.
func Of(t time.Time) Stamp {
	t = t.UTC()
	hours := int(Interval / time.Hour)
	h := (t.Hour() / hours) * hours
	return Stamp{t: time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, time.UTC)}
}

// Parse reads a stamp in Layout form. The hour must sit on the grid.
func Parse(s string) (Stamp, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return Stamp{}, fmt.Errorf("invalid stamp %q: %w", s, err)
	}
	st := Of(t)
	if !st.t.Equal(t) {
		return Stamp{}, fmt.Errorf("invalid stamp %q: hour is not a multiple of %s", s, Interval)
	}
	return st, nil
}

// Step moves the stamp by n whole intervals; negative n moves backward.
func (s Stamp) Step(n int) Stamp {
	return Stamp{t: s.t.Add(time.Duration(n) * Interval)}
}

// AgeDays is the fractional number of days between the stamp and now.
// It is negative for stamps in the future.
func (s Stamp) AgeDays(now time.Time) float64 {
	return now.Sub(s.t).Hours() / 24
}

// Time returns the UTC instant the stamp represents.
func (s Stamp) Time() time.Time { return s.t }

// IsZero reports whether s is the zero value.
func (s Stamp) IsZero() bool { return s.t.IsZero() }

func (s Stamp) String() string { return s.t.Format(Layout) }

// Hour returns the two-digit hour component ("00", "06", "12" or "18").
func (s Stamp) Hour() string { return s.t.Format("15") }

// Date returns the YYYYMMDD component.
func (s Stamp) Date() string { return s.t.Format("20060102") }

func (s Stamp) Compare(o Stamp) int { return s.t.Compare(o.t) }
func (s Stamp) Before(o Stamp) bool { return s.t.Before(o.t) }
func (s Stamp) After(o Stamp) bool { return s.t.After(o.t) }
func (s Stamp) Equal(o Stamp) bool { return s.t.Equal(o.t) }

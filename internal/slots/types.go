package slots

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument is returned when a precondition of the slot computation
// does not hold (non-positive slot length, span below one week, bad config).
var ErrInvalidArgument = errors.New("invalid argument")

// Interval is a closed-open time range [Start, End). It represents either a
// busy period reported by a calendar or a free gap derived from them.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// UTC returns a copy of the interval with both instants in UTC.
func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

// Window is the query range over which busy data is requested and slots are derived.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Slot is a candidate meeting time of exactly the requested length.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Config holds the work-hour regime used to evaluate slots.
type Config struct {
	// WorkStartHour is the first local hour of the working day (default: 9).
	WorkStartHour int

	// WorkEndHour is the local hour at which the working day ends (default: 17).
	// A slot may end exactly at WorkEndHour:00.
	WorkEndHour int

	// Location is the zone used for weekday and work-hours checks (default: UTC).
	Location *time.Location
}

// DefaultConfig returns a 09:00-17:00 UTC work-hour regime.
func DefaultConfig() Config {
	return Config{
		WorkStartHour: 9,
		WorkEndHour:   17,
		Location:      time.UTC,
	}
}

// Validate checks that the work-hour window is well formed.
func (c Config) Validate() error {
	if c.WorkStartHour < 0 || c.WorkStartHour > 23 {
		return fmt.Errorf("work start hour must be between 0 and 23, got %d: %w", c.WorkStartHour, ErrInvalidArgument)
	}
	if c.WorkEndHour < 1 || c.WorkEndHour > 24 {
		return fmt.Errorf("work end hour must be between 1 and 24, got %d: %w", c.WorkEndHour, ErrInvalidArgument)
	}
	if c.WorkStartHour >= c.WorkEndHour {
		return fmt.Errorf("work start hour %d must be before work end hour %d: %w", c.WorkStartHour, c.WorkEndHour, ErrInvalidArgument)
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Local converts an instant to the configured zone.
func (c Config) Local(t time.Time) time.Time {
	return t.In(c.location())
}

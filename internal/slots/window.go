package slots

import (
	"fmt"
	"time"
)

// Week is the length of one span unit of a query window.
const Week = 7 * 24 * time.Hour

// AlignWindow computes the query window that starts at the first slot-grid
// boundary at or after now and inside working hours, and spans spanWeeks weeks.
//
// now is truncated to whole minutes and its UTC minute is rounded up to the
// next multiple of slotLengthMinutes. If the result falls before the local
// work start it is clamped to WorkStartHour:00 of the same local day; at or
// after the local work end it rolls to WorkStartHour:00 of the next local day.
func AlignWindow(cfg Config, now time.Time, slotLengthMinutes, spanWeeks int) (Window, error) {
	if slotLengthMinutes <= 0 {
		return Window{}, fmt.Errorf("slot length must be positive, got %d: %w", slotLengthMinutes, ErrInvalidArgument)
	}
	if spanWeeks < 1 {
		return Window{}, fmt.Errorf("span must be at least one week, got %d: %w", spanWeeks, ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return Window{}, err
	}

	// The slot grid follows the UTC clock; only the clamp below is local.
	start := now.UTC().Truncate(time.Minute)
	if rem := start.Minute() % slotLengthMinutes; rem != 0 {
		start = start.Add(time.Duration(slotLengthMinutes-rem) * time.Minute)
	}

	local := cfg.Local(start)

	switch {
	case local.Hour() < cfg.WorkStartHour:
		local = time.Date(local.Year(), local.Month(), local.Day(), cfg.WorkStartHour, 0, 0, 0, local.Location())
	case local.Hour() >= cfg.WorkEndHour:
		local = time.Date(local.Year(), local.Month(), local.Day()+1, cfg.WorkStartHour, 0, 0, 0, local.Location())
	}

	start = local.UTC()
	return Window{
		Start: start,
		End:   start.Add(time.Duration(spanWeeks) * Week),
	}, nil
}

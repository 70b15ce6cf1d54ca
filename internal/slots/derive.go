package slots

import (
	"fmt"
	"sort"
	"time"
)

// DeriveSlots returns the ordered free slots of exactly slotLengthMinutes inside
// window that avoid every busy interval, fall on a local weekday and lie fully
// inside local working hours.
//
// Busy intervals from all participants are pooled; their order does not matter.
// Malformed busy intervals (End before Start) are not sanitized here.
func DeriveSlots(cfg Config, window Window, slotLengthMinutes int, busy []Interval) ([]Slot, error) {
	if slotLengthMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d: %w", slotLengthMinutes, ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	merged := MergeIntervals(SortIntervals(busy))
	free := Invert(window, merged)
	return Slice(cfg, free, time.Duration(slotLengthMinutes)*time.Minute), nil
}

// SortIntervals returns a copy of intervals, normalized to UTC and stably
// ordered by start.
func SortIntervals(intervals []Interval) []Interval {
	sorted := make([]Interval, len(intervals))
	for i, iv := range intervals {
		sorted[i] = iv.UTC()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}

// MergeIntervals collapses a start-sorted sequence into pairwise disjoint
// intervals. Touching intervals (next.Start == open.End) are merged.
func MergeIntervals(sorted []Interval) []Interval {
	merged := make([]Interval, 0, len(sorted))
	for _, iv := range sorted {
		if len(merged) == 0 {
			merged = append(merged, iv)
			continue
		}
		open := &merged[len(merged)-1]
		if iv.Start.After(open.End) {
			merged = append(merged, iv)
			continue
		}
		if iv.End.After(open.End) {
			open.End = iv.End
		}
	}
	return merged
}

// Invert returns the gaps of window not covered by the merged busy intervals,
// clipped to the window.
func Invert(window Window, merged []Interval) []Interval {
	var free []Interval
	cursor := window.Start.UTC()
	end := window.End.UTC()

	for _, busy := range merged {
		if !cursor.Before(end) {
			break
		}
		if cursor.Before(busy.Start) {
			gapEnd := busy.Start
			if gapEnd.After(end) {
				gapEnd = end
			}
			free = append(free, Interval{Start: cursor, End: gapEnd})
		}
		if busy.End.After(cursor) {
			cursor = busy.End
		}
	}

	if cursor.Before(end) {
		free = append(free, Interval{Start: cursor, End: end})
	}
	return free
}

// Slice carves each free interval into back-to-back candidates of length d
// starting at the interval start and keeps the ones that fall on a local
// weekday inside working hours. Rejected candidates are skipped, not retried
// at a finer offset.
func Slice(cfg Config, free []Interval, d time.Duration) []Slot {
	var out []Slot
	if d <= 0 {
		return out
	}

	for _, f := range free {
		for start := f.Start; !start.Add(d).After(f.End); start = start.Add(d) {
			end := start.Add(d)
			if IsWeekday(cfg, start) && WithinWorkHours(cfg, start, end) {
				out = append(out, Slot{Start: start, End: end})
			}
		}
	}
	return out
}

// IsWeekday reports whether t falls on Monday through Friday in the configured zone.
func IsWeekday(cfg Config, t time.Time) bool {
	switch cfg.Local(t).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// WithinWorkHours reports whether [start, end] lies on a single local date and
// inside [WorkStartHour:00, WorkEndHour:00] of that date. The upper bound is
// closed: a slot ending exactly at the work end is accepted.
func WithinWorkHours(cfg Config, start, end time.Time) bool {
	localStart := cfg.Local(start)
	localEnd := cfg.Local(end)

	y1, m1, d1 := localStart.Date()
	y2, m2, d2 := localEnd.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return false
	}

	loc := localStart.Location()
	workStart := time.Date(y1, m1, d1, cfg.WorkStartHour, 0, 0, 0, loc)
	workEnd := time.Date(y1, m1, d1, cfg.WorkEndHour, 0, 0, 0, loc)

	return !localStart.Before(workStart) && !localEnd.After(workEnd)
}

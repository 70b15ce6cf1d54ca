// Package slots derives common free meeting slots from pooled busy intervals.
//
// The package is purely computational. It performs no I/O, holds no shared
// mutable state and is safe for concurrent use; the only state shared between
// calls is the immutable Config passed in by the caller.
//
// Two operations make up the package:
//
//   - AlignWindow turns "now" into a query window that starts on the slot grid
//     and inside (or at the start of) a working day.
//   - DeriveSlots sorts and merges busy intervals, inverts them into free
//     intervals clipped to the window, and slices the free time into
//     fixed-length slots that fall on a weekday and fully inside working hours.
//
// Interval arithmetic is done on UTC instants. Weekday and work-hours checks are
// done on the representation in Config.Location, so the result does not depend
// on the process time zone.
//
// Example usage:
//
//	cfg := slots.DefaultConfig()
//	window, err := slots.AlignWindow(cfg, time.Now(), 30, 2)
//	if err != nil {
//	    return err
//	}
//	free, err := slots.DeriveSlots(cfg, window, 30, busy)
package slots

// Package format renders computed slots for people and programs.
//
// JSON renders slots as RFC 3339 start/end pairs. Preview pairs each slot's
// UTC instants with a 12-hour local rendering and keeps only the first few
// slots. Table prints one row per slot with the local date, weekday and time
// range.
package format

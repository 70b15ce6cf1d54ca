package format

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/teemow/timeslotseeker/internal/slots"
)

// Layouts used when rendering local times.
const (
	PreviewLayout = "2006-01-02 03:04 PM"
	DateLayout    = "01/02/06"
	DayLayout     = "Monday"
	ClockLayout   = "03:04 PM"
)

// DefaultPreviewLimit is the number of slots shown by Preview.
const DefaultPreviewLimit = 10

// SlotJSON is the wire form of a slot.
type SlotJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PreviewRow shows one slot in UTC and in the display zone.
type PreviewRow struct {
	UTCStart   string `json:"utc_start"`
	UTCEnd     string `json:"utc_end"`
	LocalStart string `json:"local_start"`
	LocalEnd   string `json:"local_end"`
}

// TableRow is one line of the slot table.
type TableRow struct {
	Date string
	Day  string
	Time string
}

// JSON converts slots to their RFC 3339 wire form in UTC. It never returns nil
// so an empty result encodes as [].
func JSON(found []slots.Slot) []SlotJSON {
	out := make([]SlotJSON, 0, len(found))
	for _, s := range found {
		out = append(out, SlotJSON{
			Start: s.Start.UTC().Format(time.RFC3339),
			End:   s.End.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Preview returns at most limit rows, rendering local times in loc. A
// non-positive limit means DefaultPreviewLimit; a nil loc means time.Local.
func Preview(found []slots.Slot, loc *time.Location, limit int) []PreviewRow {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if loc == nil {
		loc = time.Local
	}
	if len(found) > limit {
		found = found[:limit]
	}

	out := make([]PreviewRow, 0, len(found))
	for _, s := range found {
		out = append(out, PreviewRow{
			UTCStart:   s.Start.UTC().Format(time.RFC3339),
			UTCEnd:     s.End.UTC().Format(time.RFC3339),
			LocalStart: s.Start.In(loc).Format(PreviewLayout),
			LocalEnd:   s.End.In(loc).Format(PreviewLayout),
		})
	}
	return out
}

// Rows builds table rows in loc (time.Local when nil).
func Rows(found []slots.Slot, loc *time.Location) []TableRow {
	if loc == nil {
		loc = time.Local
	}
	out := make([]TableRow, 0, len(found))
	for _, s := range found {
		start, end := s.Start.In(loc), s.End.In(loc)
		out = append(out, TableRow{
			Date: start.Format(DateLayout),
			Day:  start.Format(DayLayout),
			Time: start.Format(ClockLayout) + " - " + end.Format(ClockLayout),
		})
	}
	return out
}

// Table writes the Date/Day/Time table for found to w.
func Table(w io.Writer, found []slots.Slot, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tTIME")
	for _, r := range Rows(found, loc) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Date, r.Day, r.Time)
	}
	return tw.Flush()
}

// Text renders slots as a numbered list, one per line, for chat-style
// consumers. It returns "No common free slots found." for an empty list.
func Text(found []slots.Slot, loc *time.Location) string {
	if len(found) == 0 {
		return "No common free slots found."
	}
	var b []byte
	for i, r := range Rows(found, loc) {
		b = fmt.Appendf(b, "%d. %s %s %s\n", i+1, r.Day, r.Date, r.Time)
	}
	return string(b)
}

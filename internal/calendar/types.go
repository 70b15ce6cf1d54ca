package calendar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teemow/timeslotseeker/internal/slots"
)

// FreeBusyInfo is the availability of one calendar.
type FreeBusyInfo struct {
	Calendar string
	Busy     []slots.Interval
	Errors   []string
}

// CalendarErrors is returned by Lookup when the API reports errors for some
// of the queried calendars (unknown calendar, no free/busy access). Busy data
// for the remaining calendars is discarded.
type CalendarErrors struct {
	// Reasons maps calendar ID to the reasons reported by the API.
	Reasons map[string][]string
}

func (e *CalendarErrors) Error() string {
	ids := make([]string, 0, len(e.Reasons))
	for id := range e.Reasons {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s (%s)", id, strings.Join(e.Reasons[id], ", "))
	}
	return "free/busy unavailable for " + strings.Join(parts, "; ")
}

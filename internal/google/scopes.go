package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// CalendarScopes are the OAuth scopes requested for free/busy lookups.
// Read-only access is enough: the service never writes to calendars.
var CalendarScopes = []string{
	calendar.CalendarReadonlyScope,
}

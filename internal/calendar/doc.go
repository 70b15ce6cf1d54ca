// Package calendar queries Google Calendar free/busy data.
//
// Client implements the busy source used by package finder: Lookup splits the
// participants into batches of at most 50 calendars, queries the batches
// concurrently and returns the busy intervals of every calendar in UTC.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, "default", google.NewFileTokenProvider())
//	if err != nil {
//	    return err
//	}
//	busy, err := client.Lookup(ctx, window, []string{"alice@example.com", "bob@example.com"})
package calendar

// Package finder implements the caller-facing free slot search.
//
// A Service validates a Request, aligns the query window to the current time,
// asks a BusySource for the busy intervals of every participant and derives
// the common free slots with package slots. The Google Calendar client in
// package calendar and the in-memory StaticSource both satisfy BusySource.
//
// Failures are reported as *Error with a Kind: KindInvalidArgument for input
// rejected before any lookup, KindUpstreamUnavailable when the busy source
// fails or times out. Finding no slots is not an error.
package finder

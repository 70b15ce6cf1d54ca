// Package server hosts the long-running parts of timeslotseeker: the shared
// server context, the HTTP API, the health probes and the metrics listener.
//
// # Key Components
//
// ServerContext builds one finder.Service per calendar account on first use
// and caches it. The busy source behind each service comes from a
// SourceFactory, so the same server runs against Google Calendar or against
// a static fixture.
//
// APIServer routes requests with go-chi:
//   - POST /find-timeslot: free slots as RFC 3339 start/end pairs
//   - POST /test-slots: the first slots with UTC and local renderings
//   - GET /healthz, /readyz, /healthz/detailed: Kubernetes probes
//   - /mcp: the MCP streamable HTTP transport, when configured
//
// Invalid input maps to 400, busy source failures to 502, a missing calendar
// token to 503 and exceeded per-IP rate limits to 429.
//
// MetricsServer exposes the Prometheus registry on its own port.
package server

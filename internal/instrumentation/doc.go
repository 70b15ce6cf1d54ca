// Package instrumentation provides OpenTelemetry metrics and tracing for
// timeslotseeker.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Slot Search Metrics:
//   - slot_searches_total: Counter of free slot searches by source and status
//   - slot_search_duration_seconds: Histogram of search durations, busy lookup included
//   - slots_found: Histogram of slots returned per successful search
//   - busy_intervals_pooled: Histogram of busy intervals pooled per successful search
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// Participant addresses are never used as metric labels or span attributes.
//
// # Tracing
//
// Spans are created for:
//   - free slot searches (finder.find_free_slots)
//   - MCP tool invocations (tool.<name>)
//   - Google API calls (google.calendar.freebusy)
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: timeslotseeker)
//   - METRICS_DETAILED_LABELS: add request-shape labels to slot search metrics
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordSlotSearch(ctx, instrumentation.SlotSearch{
//		Source:     instrumentation.SourceGoogle,
//		Status:     instrumentation.StatusSuccess,
//		SlotsFound: len(found),
//		Duration:   time.Since(start),
//	})
package instrumentation

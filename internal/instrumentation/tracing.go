package instrumentation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the timeslotseeker packages.
const TracerName = "github.com/teemow/timeslotseeker"

// Span attribute keys.
const (
	// SpanAttrTool is the MCP tool name attribute.
	SpanAttrTool = "mcp.tool"

	// SpanAttrService is the Google service name attribute.
	SpanAttrService = "google.service"

	// SpanAttrOperation is the Google operation type attribute.
	SpanAttrOperation = "google.operation"

	// SpanAttrSearchID identifies one free slot search.
	SpanAttrSearchID = "slots.search_id"

	// SpanAttrParticipants is the number of calendars queried. Participant
	// addresses are never attached to spans.
	SpanAttrParticipants = "slots.participants"

	// SpanAttrSlotLength is the requested slot length in minutes.
	SpanAttrSlotLength = "slots.slot_length_minutes"

	// SpanAttrSpanWeeks is the requested window length in weeks.
	SpanAttrSpanWeeks = "slots.span_weeks"

	// SpanAttrWindowStart and SpanAttrWindowEnd are the aligned query window.
	SpanAttrWindowStart = "slots.window_start"
	SpanAttrWindowEnd   = "slots.window_end"

	// SpanAttrSource is the busy source kind (google, static).
	SpanAttrSource = "slots.source"

	// SpanAttrBatch is the index of a freebusy batch within one lookup.
	SpanAttrBatch = "google.freebusy.batch"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithTool adds the MCP tool name attribute.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrTool, tool))
	return b
}

// WithSearchID adds the search identifier when set.
func (b *SpanAttributeBuilder) WithSearchID(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrSearchID, id))
	}
	return b
}

// WithSource adds the busy source kind when set.
func (b *SpanAttributeBuilder) WithSource(source string) *SpanAttributeBuilder {
	if source != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrSource, source))
	}
	return b
}

// WithRequest adds the shape of a slot search request.
func (b *SpanAttributeBuilder) WithRequest(participants, slotLengthMinutes, spanWeeks int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs,
		attribute.Int(SpanAttrParticipants, participants),
		attribute.Int(SpanAttrSlotLength, slotLengthMinutes),
		attribute.Int(SpanAttrSpanWeeks, spanWeeks),
	)
	return b
}

// WithWindow adds the aligned query window in RFC 3339.
func (b *SpanAttributeBuilder) WithWindow(start, end time.Time) *SpanAttributeBuilder {
	if start.IsZero() || end.IsZero() {
		return b
	}
	b.attrs = append(b.attrs,
		attribute.String(SpanAttrWindowStart, start.UTC().Format(time.RFC3339)),
		attribute.String(SpanAttrWindowEnd, end.UTC().Format(time.RFC3339)),
	)
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller ends the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context, or ""
// when no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for council spans.
const TracerName = "council-records"

// Span attribute keys.
const (
	AttrJobID      = "council.job_id"
	AttrMeetingKey = "council.meeting_key"
	AttrKind       = "council.document_kind"
	AttrPath       = "council.path"
	AttrItems      = "council.items"
	AttrErrorCode  = "council.error_code"
	AttrRetryable  = "council.retryable"
)

// Span names.
const (
	SpanBatch    = "council.batch"
	SpanMeeting  = "council.meeting"
	SpanDocument = "council.document"
	SpanSplit    = "council.split"
)

// Tracer starts council spans on the global tracer provider.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer bound to the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartBatch starts the root span of a batch run.
func (t *Tracer) StartBatch(ctx context.Context, jobID, root string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanBatch, trace.WithAttributes(
		attribute.String(AttrJobID, jobID),
		attribute.String(AttrPath, root),
	))
}

// StartMeeting starts a span covering every document of one meeting.
func (t *Tracer) StartMeeting(ctx context.Context, key string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanMeeting, trace.WithAttributes(attribute.String(AttrMeetingKey, key)))
}

// StartDocument starts a span for parsing one document.
func (t *Tracer) StartDocument(ctx context.Context, kind, path string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanDocument, trace.WithAttributes(
		attribute.String(AttrKind, kind),
		attribute.String(AttrPath, path),
	))
}

// StartSplit starts a span for splitting a packet.
func (t *Tracer) StartSplit(ctx context.Context, path string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSplit, trace.WithAttributes(attribute.String(AttrPath, path)))
}

// SpanHelper sets common attributes and status on a span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper wraps span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetItems records how many items a document yielded.
func (h *SpanHelper) SetItems(n int) {
	h.span.SetAttributes(attribute.Int(AttrItems, n))
}

// SetError records err with its classification.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// TraceID returns the trace ID in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

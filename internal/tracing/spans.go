package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanStoreLoad = "store.load"
	SpanStoreSave = "store.save"
)

// Span attribute keys.
const (
	AttrStoreBackend = "store.backend"
	AttrLayoutCount  = "layouts.count"
	AttrRecentCount  = "layouts.recent_count"
	AttrStateAbsent  = "store.state_absent"
	AttrErrorMessage = "error.message"
)

// Span event names.
const (
	EventRecordSkipped = "record.skipped"
)

// EndWithError records err on span, or marks it OK when err is nil.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

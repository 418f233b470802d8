// Package otel holds the span helpers and attribute keys shared by the
// service, sync and HTTP layers.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys describing mirrored entities and list calls.
const (
	AttrOrganizationID    = attribute.Key("organization.id")
	AttrOrganizationLogin = attribute.Key("organization.login")
	AttrRepositoryID      = attribute.Key("repository.id")
	AttrRepositoryName    = attribute.Key("repository.full_name")
	AttrJobID             = attribute.Key("job.id")
	AttrJobType           = attribute.Key("job.type")
	AttrPageSize          = attribute.Key("pagination.limit")
	AttrResultCount       = attribute.Key("result.count")
	AttrHasCursor         = attribute.Key("pagination.has_cursor")
)

// StartSpan starts a child span on tracer. With a nil tracer the span
// already in ctx is returned unchanged, which is a no-op span when tracing
// is off.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError attaches err to span as an event. A cancelled context is
// recorded but leaves the status alone, since the caller gave up rather than
// the operation failing. Any other error marks the span failed with a fixed
// description; err's text may carry SQL or URLs and only goes on the event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("cancelled", true))
		return
	}
	span.SetStatus(codes.Error, "operation failed")
}

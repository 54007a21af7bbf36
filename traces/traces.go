/*
Package traces starts OpenTelemetry spans for the save and refund paths.

Spans go to whatever TracerProvider is installed globally through
otel.SetTracerProvider. With none installed they are no-ops.
*/
package traces

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer every span is started from.
const InstrumentationName = "github.com/warp/tour-pricing"

// StartSpan starts a span named name carrying attrs.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func ReservationID(id string) attribute.KeyValue {
	return attribute.String("reservation.id", id)
}

func Amount(key string, v decimal.Decimal) attribute.KeyValue {
	return attribute.String(key, v.StringFixed(2))
}

// Fail records err on the span and marks it failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package traces_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/traces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributesAndFailure(t *testing.T) {
	// GIVEN: An in-memory exporter installed as the global provider
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// WHEN: A span is started, failed and ended
	_, span := traces.StartSpan(context.Background(), "booking.Save",
		traces.ReservationID("res-1"), traces.Amount("refund.amount", core.Dollars(25)))
	traces.Fail(span, errors.New("declined"))
	traces.Fail(span, nil)
	span.End()

	// THEN: The exporter saw one failed span with both attributes
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "booking.Save", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "declined", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1, "one recorded error")

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "res-1", attrs["reservation.id"])
	assert.Equal(t, "25.00", attrs["refund.amount"])
}

package tracing

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "spectrum", "test", "", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, ok := StartSpan(context.Background(), "ledger.apply_event", StudentID("s-1"), EventKind("EXAM"))
	ok.SetAttributes(Delta(40))
	End(ok, nil)

	_, failed := StartSpan(context.Background(), "security.sweep", SweepID("sw-1"))
	End(failed, errors.New("store unavailable"))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ledger.apply_event", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 3)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "store unavailable", spans[1].Status().Description)
}

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jwalitptl/vitalflow/pkg/logger"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown := Setup(context.Background(), Config{Enabled: false}, logger.Nop())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown := Setup(context.Background(), Config{Enabled: true, ServiceName: "vitalflow"}, logger.Nop())
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := tp.Tracer("test").Start(context.Background(), "transfer.Approve")
	span.SetAttributes(ID("transfer_id", "TRF-1"))
	End(span, errors.New("bed unavailable"))

	spans := rec.Ended()
	if assert.Len(t, spans, 1) {
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, "bed unavailable", spans[0].Status().Description)
	}
}

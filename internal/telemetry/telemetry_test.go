package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_NoEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := InitTracing(context.Background(), "cart", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestInitTracing_WithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// the exporter connects lazily, so no collector is needed
	shutdown, err := InitTracing(context.Background(), "cart", "localhost:4317")
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

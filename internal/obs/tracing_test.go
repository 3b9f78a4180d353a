package obs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/toko-cart/internal/obs"
)

// retainingExporter keeps spans after shutdown so they can be inspected.
type retainingExporter struct{ *tracetest.InMemoryExporter }

func (retainingExporter) Shutdown(context.Context) error { return nil }

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestInitTracerNoneIsNoop(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracerFlushesOnShutdown(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:  "toko-cart-test",
		Environment:  "test",
		SpanExporter: retainingExporter{exporter},
	})
	require.NoError(t, err)

	_, span := otel.Tracer("cart.store").Start(context.Background(), "cart.add_item")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "cart.add_item", spans[0].Name)
	require.Contains(t, spans[0].Resource.String(), "toko-cart-test")
}

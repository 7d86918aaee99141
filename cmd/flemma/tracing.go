package main

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// newTracerProvider constructs a bare SDK TracerProvider with no span
// processor attached: spans are created and ended but never exported
// anywhere, which keeps the CLI harness free of network I/O while still
// exercising the same TracerProvider construction a hosting editor would
// do before handing a real trace.Tracer to the core via runtime.Options.
func newTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

func tracerFromProvider(provider *sdktrace.TracerProvider, enabled bool) trace.Tracer {
	if !enabled {
		return nil
	}
	return provider.Tracer("flemma-cli")
}

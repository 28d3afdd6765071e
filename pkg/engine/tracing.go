package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const engineTracerName = "dishpatch.engine"

const spanSagaExecute = "saga.execute"

func engineTracer() trace.Tracer {
	return otel.Tracer(engineTracerName)
}

package tracing

import (
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"go.opentelemetry.io/otel/attribute"
)

// MeasurementAttributes describes an estimation result as span attributes
func MeasurementAttributes(m *cpuperf.Measurement) []attribute.KeyValue {
	if m == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Float64("kdfcal.ops_per_second", m.OpsPerSecond),
		attribute.Int64("kdfcal.operations", int64(m.Operations)),
		attribute.Float64("kdfcal.elapsed_seconds", m.Elapsed.Seconds()),
		attribute.Float64("kdfcal.resolution_seconds", m.Resolution.Seconds()),
		attribute.Int("kdfcal.precision", m.Precision),
		attribute.Int("kdfcal.tick_calls", m.TickCalls),
		attribute.Int("kdfcal.measure_calls", m.MeasureCalls),
	}
}

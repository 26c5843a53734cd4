// Package observe provides observability primitives for Cadenza:
// OpenTelemetry metrics with a Prometheus exporter bridge so the pipeline
// can be scraped via a standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cadenza metrics.
const meterName = "github.com/mveroni/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FramesProcessed counts frames through a pipeline stage. Use with
	// attribute.String("stage", ...).
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames discarded by a full queue. Use with
	// attribute.String("stage", ...).
	FramesDropped metric.Int64Counter

	// WakeDetections counts wake-word events. Use with
	// attribute.String("word", ...).
	WakeDetections metric.Int64Counter

	// Recognitions counts recognition outcomes. Use with
	// attribute.String("engine", ...), attribute.String("status", ...).
	Recognitions metric.Int64Counter

	// RecognitionDuration tracks per-engine transcription latency.
	RecognitionDuration metric.Float64Histogram

	// CommandsInterpreted counts parsed commands. Use with
	// attribute.String("type", ...).
	CommandsInterpreted metric.Int64Counter

	// CatalogRequests counts catalog API calls. Use with
	// attribute.String("status", ...).
	CatalogRequests metric.Int64Counter

	// ActiveSessions tracks open command windows (0 or 1).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for recognition latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("cadenza.frames.processed",
		metric.WithDescription("Total audio frames processed by pipeline stage."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("cadenza.frames.dropped",
		metric.WithDescription("Total audio frames dropped by pipeline stage."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("cadenza.wake.detections",
		metric.WithDescription("Total wake-word detections by word."),
	); err != nil {
		return nil, err
	}
	if met.Recognitions, err = m.Int64Counter("cadenza.recognitions",
		metric.WithDescription("Total recognition outcomes by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDuration, err = m.Float64Histogram("cadenza.recognition.duration",
		metric.WithDescription("Latency of speech recognition by engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CommandsInterpreted, err = m.Int64Counter("cadenza.commands.interpreted",
		metric.WithDescription("Total interpreted commands by type."),
	); err != nil {
		return nil, err
	}
	if met.CatalogRequests, err = m.Int64Counter("cadenza.catalog.requests",
		metric.WithDescription("Total catalog API requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("cadenza.active_sessions",
		metric.WithDescription("Number of open command windows."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame records one processed frame for stage.
func (m *Metrics) RecordFrame(ctx context.Context, stage string) {
	m.FramesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordDrop records one dropped frame for stage.
func (m *Metrics) RecordDrop(ctx context.Context, stage string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordWake records a wake-word detection.
func (m *Metrics) RecordWake(ctx context.Context, word string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("word", word)),
	)
}

// RecordRecognition records a recognition outcome with its latency.
func (m *Metrics) RecordRecognition(ctx context.Context, engine, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	)
	m.Recognitions.Add(ctx, 1, attrs)
	m.RecognitionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordCatalogRequest records one catalog API request by status.
func (m *Metrics) RecordCatalogRequest(ctx context.Context, status string) {
	m.CatalogRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCommand records an interpreted command by type.
func (m *Metrics) RecordCommand(ctx context.Context, cmdType string) {
	m.CommandsInterpreted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", cmdType)),
	)
}

// Package observe provides application-wide observability primitives for
// obs-motion: OpenTelemetry metric instruments and the SDK provider setup
// that bridges them to a Prometheus /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all obs-motion metrics.
const meterName = "github.com/otastet/obs-motion"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Detection plane ---

	// DetectionsEmitted counts detection events published by sensor ports.
	// Use with attribute.String("source", ...).
	DetectionsEmitted metric.Int64Counter

	// SampleFailures counts transient raw-signal sampling failures.
	// Use with attribute.String("source", ...).
	SampleFailures metric.Int64Counter

	// TriggersAccepted counts events admitted past the cooldown gate.
	// Use with attribute.String("source", ...).
	TriggersAccepted metric.Int64Counter

	// TriggersSuppressed counts events rejected by the cooldown gate.
	// Use with attribute.String("source", ...).
	TriggersSuppressed metric.Int64Counter

	// --- Session plane ---

	// SessionsStarted counts recording sessions begun.
	// Use with attribute.String("source", ...).
	SessionsStarted metric.Int64Counter

	// SessionsStopped counts recording sessions ended.
	// Use with attribute.String("reason", ...) — "deadline" or "shutdown".
	SessionsStopped metric.Int64Counter

	// SessionExtensions counts retriggers that pushed a stop deadline forward.
	SessionExtensions metric.Int64Counter

	// RecorderErrors counts failed remote recorder calls.
	// Use with attribute.String("op", ...) — "start", "stop", "status".
	RecorderErrors metric.Int64Counter

	// ActiveRecordings tracks whether a recording session is live (0 or 1).
	ActiveRecordings metric.Int64UpDownCounter

	// SessionDuration tracks completed session lengths in seconds.
	SessionDuration metric.Float64Histogram
}

// sessionBuckets defines histogram bucket boundaries (in seconds) sized for
// minutes-to-hours recording sessions.
var sessionBuckets = []float64{
	10, 30, 60, 300, 900, 1800, 3600, 7200, 14400,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Detection counters.
	if met.DetectionsEmitted, err = m.Int64Counter("obsmotion.detections.emitted",
		metric.WithDescription("Detection events published by sensor ports, by source."),
	); err != nil {
		return nil, err
	}
	if met.SampleFailures, err = m.Int64Counter("obsmotion.sample.failures",
		metric.WithDescription("Transient raw-signal sampling failures, by source."),
	); err != nil {
		return nil, err
	}
	if met.TriggersAccepted, err = m.Int64Counter("obsmotion.triggers.accepted",
		metric.WithDescription("Detection events admitted past the cooldown gate, by source."),
	); err != nil {
		return nil, err
	}
	if met.TriggersSuppressed, err = m.Int64Counter("obsmotion.triggers.suppressed",
		metric.WithDescription("Detection events rejected by the cooldown gate, by source."),
	); err != nil {
		return nil, err
	}

	// Session counters.
	if met.SessionsStarted, err = m.Int64Counter("obsmotion.sessions.started",
		metric.WithDescription("Recording sessions begun, by triggering source."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStopped, err = m.Int64Counter("obsmotion.sessions.stopped",
		metric.WithDescription("Recording sessions ended, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SessionExtensions, err = m.Int64Counter("obsmotion.sessions.extensions",
		metric.WithDescription("Retriggers that pushed an active session's stop deadline forward."),
	); err != nil {
		return nil, err
	}
	if met.RecorderErrors, err = m.Int64Counter("obsmotion.recorder.errors",
		metric.WithDescription("Failed remote recorder calls, by operation."),
	); err != nil {
		return nil, err
	}

	// Gauge.
	if met.ActiveRecordings, err = m.Int64UpDownCounter("obsmotion.active_recordings",
		metric.WithDescription("Number of live recording sessions (0 or 1)."),
	); err != nil {
		return nil, err
	}

	// Histogram.
	if met.SessionDuration, err = m.Float64Histogram("obsmotion.session.duration",
		metric.WithDescription("Completed recording session length."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordDetection records one emitted detection event.
func (m *Metrics) RecordDetection(ctx context.Context, source string) {
	m.DetectionsEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordSampleFailure records one transient sampling failure.
func (m *Metrics) RecordSampleFailure(ctx context.Context, source string) {
	m.SampleFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordTrigger records the cooldown gate's verdict for one event.
func (m *Metrics) RecordTrigger(ctx context.Context, source string, accepted bool) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	if accepted {
		m.TriggersAccepted.Add(ctx, 1, attrs)
	} else {
		m.TriggersSuppressed.Add(ctx, 1, attrs)
	}
}

// RecordSessionStart records a session start and marks the recording live.
func (m *Metrics) RecordSessionStart(ctx context.Context, source string) {
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
	m.ActiveRecordings.Add(ctx, 1)
}

// RecordSessionStop records a session end with its duration in seconds.
func (m *Metrics) RecordSessionStop(ctx context.Context, reason string, seconds float64) {
	m.SessionsStopped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
	m.ActiveRecordings.Add(ctx, -1)
	m.SessionDuration.Record(ctx, seconds)
}

// RecordRecorderError records one failed remote recorder call.
func (m *Metrics) RecordRecorderError(ctx context.Context, op string) {
	m.RecorderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

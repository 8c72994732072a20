// Package observe holds the OpenTelemetry instruments recorded by the audit
// service and the worker. A Prometheus exporter bridge is set up by
// [InitProvider]; tests build [Metrics] from their own MeterProvider.
package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/suPer8Hu/voice-audit"

// Metrics groups the instruments. A nil *Metrics records nothing.
type Metrics struct {
	SessionsStarted   metric.Int64Counter
	SessionsCompleted metric.Int64Counter
	SessionsAbandoned metric.Int64Counter

	// ResponsesRecorded uses attribute "source" = text|audio.
	ResponsesRecorded     metric.Int64Counter
	TranscriptionFailures metric.Int64Counter

	InsightScore    metric.Float64Histogram
	InsightsCreated metric.Int64Counter

	// JobsProcessed uses attributes "kind" and "status".
	JobsProcessed metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.SessionsStarted, "audit.sessions.started", "Audit sessions started."},
		{&met.SessionsCompleted, "audit.sessions.completed", "Audit sessions completed."},
		{&met.SessionsAbandoned, "audit.sessions.abandoned", "Audit sessions abandoned."},
		{&met.ResponsesRecorded, "audit.responses.recorded", "Responses recorded by source."},
		{&met.TranscriptionFailures, "audit.transcription.failures", "Responses whose transcription failed."},
		{&met.InsightsCreated, "audit.insights.created", "Insights generated, by confidence level."},
		{&met.JobsProcessed, "audit.jobs.processed", "Background jobs processed by kind and status."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.InsightScore, err = m.Float64Histogram("audit.insight.score",
		metric.WithDescription("Overall score of generated insights."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("audit.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Default builds Metrics on the global MeterProvider.
func Default() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

func templateAttr(templateID uint64) metric.AddOption {
	return metric.WithAttributes(attribute.String("template_id", strconv.FormatUint(templateID, 10)))
}

func (m *Metrics) SessionStarted(ctx context.Context, templateID uint64) {
	if m == nil {
		return
	}
	m.SessionsStarted.Add(ctx, 1, templateAttr(templateID))
}

func (m *Metrics) SessionCompleted(ctx context.Context, templateID uint64) {
	if m == nil {
		return
	}
	m.SessionsCompleted.Add(ctx, 1, templateAttr(templateID))
}

func (m *Metrics) SessionAbandoned(ctx context.Context, templateID uint64) {
	if m == nil {
		return
	}
	m.SessionsAbandoned.Add(ctx, 1, templateAttr(templateID))
}

func (m *Metrics) ResponseRecorded(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ResponsesRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) TranscriptionFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Add(ctx, 1)
}

func (m *Metrics) InsightCreated(ctx context.Context, score *float64, confidence string) {
	if m == nil {
		return
	}
	m.InsightsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("confidence", confidence)))
	if score != nil {
		m.InsightScore.Record(ctx, *score)
	}
}

func (m *Metrics) JobProcessed(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) HTTPRequest(ctx context.Context, method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

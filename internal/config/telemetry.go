package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"growthcore/internal/core"
)

// Metrics recorders selectable with observability.metrics.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Observability selects the metrics recorder and the span tracer.
type Observability struct {
	Metrics string `yaml:"metrics"`
	Trace   bool   `yaml:"trace"`
}

// Telemetry holds the recorders built from the observability section.
type Telemetry struct {
	Metrics core.MetricsRecorder
	Tracer  core.Tracer

	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
}

// NewTelemetry builds the configured recorders. Spans are written to
// traceOut as JSON lines when tracing is on.
func (c Config) NewTelemetry(traceOut io.Writer) Telemetry {
	var t Telemetry
	switch strings.ToLower(c.Observability.Metrics) {
	case MetricsExpvar:
		t.expvar = core.NewExpvarMetricsRecorder("")
		t.Metrics = t.expvar
	case MetricsPrometheus:
		t.registry = prometheus.NewRegistry()
		t.Metrics = core.NewPrometheusMetricsRecorder(t.registry)
	}
	if c.Observability.Trace {
		t.Tracer = core.NewJSONTracer(traceOut)
	}
	return t
}

// Options returns the service options wiring the recorders. Unset recorders
// are skipped.
func (t Telemetry) Options() []core.ServiceOption {
	var opts []core.ServiceOption
	if t.Metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(t.Metrics))
	}
	if t.Tracer != nil {
		opts = append(opts, core.WithTracer(t.Tracer))
	}
	return opts
}

// WriteMetrics dumps the recorded metrics to w: Prometheus text exposition
// for the prometheus recorder, a JSON document for expvar.
func (t Telemetry) WriteMetrics(w io.Writer) error {
	switch {
	case t.registry != nil:
		families, err := t.registry.Gather()
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
	case t.expvar != nil:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{t.expvar.Name(): t.expvar.Snapshot()}); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

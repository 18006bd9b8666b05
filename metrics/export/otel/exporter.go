package otel

import (
	"context"
	"errors"
	"fmt"

	enrollflow "github.com/onvero/enrollflow"
	"github.com/onvero/enrollflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() enrollflow.MetricsSnapshot
	AuditDropped() uint64
	AuditDropSummary() map[string]uint64
}

type observedCounter struct {
	id         enrollflow.MetricID
	instrument metric.Int64ObservableCounter
}

// OTelExporter bridges engine snapshots into OpenTelemetry instruments. The
// engine's single histogram, finalize latency, is observed through one bucket
// gauge carrying an "le" attribute per bound rather than one instrument per
// bound, and audit drops carry an "event_type" attribute when the dispatcher
// has a breakdown.
type OTelExporter struct {
	source         metricsSource
	registration   metric.Registration
	counters       []observedCounter
	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	auditDropped   metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *enrollflow.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+3)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	latency := internaldefs.FinalizeLatency
	latencyBuckets, err := meter.Int64ObservableGauge(
		latency.Name+"_bucket",
		metric.WithDescription("Cumulative finalize latency bucket counts, keyed by le."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	exporter.latencyBuckets = latencyBuckets
	observables = append(observables, latencyBuckets)

	latencyCount, err := meter.Int64ObservableGauge(
		latency.Name+"_count",
		metric.WithDescription("Finalize latency sample count."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	exporter.latencyCount = latencyCount
	observables = append(observables, latencyCount)

	auditDropped, err := meter.Int64ObservableCounter(
		"enrollflow_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	boundAttrs := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
	for i, le := range internaldefs.HistogramBounds {
		boundAttrs[i] = metric.WithAttributes(attribute.String("le", le))
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}

		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[latency.ID]))
		for i := range cumulative {
			observer.ObserveInt64(exporter.latencyBuckets, int64(cumulative[i]), boundAttrs[i])
		}
		observer.ObserveInt64(exporter.latencyCount, int64(cumulative[len(cumulative)-1]))

		if summary := exporter.source.AuditDropSummary(); len(summary) > 0 {
			for eventType, n := range summary {
				observer.ObserveInt64(exporter.auditDropped, int64(n),
					metric.WithAttributes(attribute.String("event_type", eventType)))
			}
		} else {
			observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

package prometheus

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	enrollflow "github.com/onvero/enrollflow"
	"github.com/onvero/enrollflow/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() enrollflow.MetricsSnapshot
	AuditDropped() uint64
	AuditDropSummary() map[string]uint64
}

// PrometheusExporter renders enrollflow metrics in Prometheus text exposition
// format: the counter set, the finalize-latency histogram, and the audit drop
// counter broken out per event type when the dispatcher has a breakdown.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [enrollflow.Engine].
func NewPrometheusExporter(engine *enrollflow.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from a
// custom metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		family(&b, def.Name, def.Help, "counter")
		fmt.Fprintf(&b, "%s %d\n", def.Name, snapshot.Counters[def.ID])
	}

	renderFinalizeLatency(&b, snapshot)
	renderAuditDrops(&b, dropped, p.source.AuditDropSummary())

	return b.String()
}

func renderFinalizeLatency(b *strings.Builder, snapshot enrollflow.MetricsSnapshot) {
	def := internaldefs.FinalizeLatency
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))

	family(b, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(b, "%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
	}
	fmt.Fprintf(b, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
	// The engine does not track a sum; the field stays for scrape compatibility.
	fmt.Fprintf(b, "%s_sum 0\n", def.Name)
}

// Drops render as one series per audit event type when the dispatcher has a
// breakdown, and as a single untyped series otherwise.
func renderAuditDrops(b *strings.Builder, total uint64, byEvent map[string]uint64) {
	const name = "enrollflow_audit_dropped_total"
	family(b, name, "Dropped audit events due to dispatcher backpressure.", "counter")

	if len(byEvent) == 0 {
		fmt.Fprintf(b, "%s %d\n", name, total)
		return
	}

	types := make([]string, 0, len(byEvent))
	for eventType := range byEvent {
		types = append(types, eventType)
	}
	sort.Strings(types)
	for _, eventType := range types {
		fmt.Fprintf(b, "%s{event_type=%q} %d\n", name, eventType, byEvent[eventType])
	}
}

func family(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, escapeHelp(help))
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

// Package prometheus provides Prometheus collectors for enrollflow metrics.
//
// [NewPrometheusExporter] accepts an [enrollflow.Engine] and exposes an [http.Handler]
// that renders all enrollflow counters and histograms in Prometheus text exposition
// format. Counter names are prefixed enrollflow_*_total; the single histogram is
// enrollflow_finalize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus

// Package prometheus exposes engine metrics through client_golang.
//
// [Collector] implements prometheus.Collector over Engine.MetricsSnapshot:
// one gosession_*_total counter per engine counter, the
// gosession_resolve_latency_seconds histogram and the audit drop counter.
// [Handler] serves a private registry holding the collector.
//
// # What this package must NOT do
//
//   - Register into prometheus.DefaultRegisterer on its own.
//   - Mutate engine state.
package prometheus

// Package prometheus exposes goGuard engine metrics as a
// prometheus.Collector.
//
// The collector reads Engine.MetricsSnapshot on every scrape; nothing is
// registered globally. Mount Handler, or register the Collector in an
// existing registry.
package prometheus

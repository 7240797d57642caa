// Package metrics counts delivery outcomes and writes them as a Prometheus
// text exposition file, suitable for node_exporter's textfile collector.
package metrics

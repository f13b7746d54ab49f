// Package metrics exposes socket lifecycle and relay traffic as Prometheus
// metrics, derived from events on the bus.
package metrics

// Package metrics defines the Prometheus collectors for metage-server.
//
// New(reg) registers every collector on reg so tests can use a private
// registry; main passes prometheus.DefaultRegisterer. All methods tolerate a
// nil *Metrics so callers never need to guard.
package metrics

// Package stats scrapes a metage-server /metrics endpoint and summarises the
// estimator counters: totals by outcome, transport and activity, config
// reload results and the number of live WebSocket clients.
package stats

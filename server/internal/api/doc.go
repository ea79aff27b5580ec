// Package api implements the HTTP surface of metage-server.
//
// New(svc, opts) returns an http.Handler (chi router) that serves:
//
//	POST /api/v1/estimate     JSON or form-encoded inputs → EstimateResponse
//	GET  /api/v1/activities   selectable activity levels with their scores
//	GET  /api/v1/health       liveness plus connected live-channel clients
//	GET  /metrics             Prometheus exposition (when opts.Metrics is set)
//	GET  /ws/estimate         live estimate channel (when opts.Live is set)
//
// Invalid inputs answer 422 with {"error":"Please enter valid inputs."};
// undecodable bodies answer 400; wrong methods 405. JSON types shared with
// the WebSocket and gRPC transports live in package types.
package api

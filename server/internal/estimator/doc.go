// Package estimator is the single call site for metabolic age estimates.
//
// Every transport (REST, WebSocket, gRPC) calls Service.Estimate, which runs
// the pure scoring engine in pkg/metabolic inside a tracing span, records
// outcome metrics labelled by transport, and logs the result.
package estimator

// Package auth provides API key authentication for metage-server.
//
// APIKeyInterceptor(mode, header, key) guards the gRPC estimator and
// APIKeyMiddleware(mode, header, key) guards the REST API. Both read the key
// from the named header (gRPC metadata keys are lowercase). WebSocket
// upgrades may instead pass it as the api_key query parameter.
//
// When mode != "apikey" or key == "", every call passes through, which keeps
// local development friction-free. A missing or incorrect key yields
// codes.Unauthenticated (gRPC) or 401 with a JSON error body (HTTP).
package auth

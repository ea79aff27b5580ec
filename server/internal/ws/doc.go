// Package ws implements the live estimate channel for metage-server.
//
// Hub keeps one session per connected client. Each text frame the client
// sends is an estimate request (same schema as POST /api/v1/estimate with a
// JSON body) and is answered on the same connection:
//
//	{"event": "result", "data": { /* same schema as the HTTP response */ }}
//	{"event": "error",  "error": "Please enter valid inputs."}
//	{"event": "error",  "error": "malformed message"}
//
// Hub.Run(ctx) blocks until ctx is cancelled, then closes every session.
// The endpoint is mounted at /ws/estimate by the server, behind the same
// API-key middleware as the REST routes.
package ws

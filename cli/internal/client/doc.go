// Package client is the metage CLI's gRPC client for metage-server.
//
// Dial connects to the server (plaintext, or TLS when a CA file is given);
// Client.Estimate injects the API key as call metadata and retries transient
// failures with jittered exponential backoff.
package client

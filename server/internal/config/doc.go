// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort      REST API, WebSocket channel and /metrics (default 8080)
//   - GRPCPort      gRPC estimator (default 50051)
//   - Auth.Mode     "apikey" or "none"
//   - Auth.KeyEnv   environment variable holding the expected API key
//   - Auth.Header   HTTP header / gRPC metadata key (default "x-api-key")
//   - Log.Level     debug|info|warn|error (default info, hot-reloadable)
//   - Log.Format    json|text (default json)
//   - WS.ReadLimit  max bytes per WebSocket message (default 4096)
//
// Load(path) applies defaults before unmarshalling, then validates.
// LoadEnvFile populates the environment from an optional .env file so that
// KeyEnv can be resolved. Watch reloads the file on change.
package config

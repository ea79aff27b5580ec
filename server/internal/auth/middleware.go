package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// QueryParam carries the API key on WebSocket upgrades. Browsers cannot set
// custom headers on a WebSocket handshake.
const QueryParam = "api_key"

// APIKeyMiddleware returns HTTP middleware enforcing the same rules as
// APIKeyInterceptor. header is matched case-insensitively. On WebSocket
// upgrade requests without the header the key may come from QueryParam.
func APIKeyMiddleware(mode, header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled(mode, key) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" && websocket.IsWebSocketUpgrade(r) {
				got = r.URL.Query().Get(QueryParam)
			}
			if got == "" || !keyMatches(got, key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

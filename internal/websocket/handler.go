package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/praxisbackup/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. originPatterns restricts the
// allowed Origin hosts; empty allows same-origin only.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, auth.MethodOf(r.Context()))
		client.Run(r.Context())
	}
}

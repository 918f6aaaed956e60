package websocket

import (
	"log/slog"
	"net/http"

	"github.com/rosevale/habitloop/internal/auth"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the connection and runs it as a client of
// the authenticated user's active group.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := auth.GroupID(r.Context())
		if groupID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // same-host clients, cookie-authenticated
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, groupID)
		client.Run(r.Context())
	}
}

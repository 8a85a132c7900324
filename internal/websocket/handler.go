package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/ayudame/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a hub
// client for the signed-in user. originPatterns lists the extra origins
// allowed besides the request's own host.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			slog.Warn("websocket accept", "user_id", userID, "error", err)
			return
		}

		NewClient(hub, conn, userID).Run(r.Context())
	}
}

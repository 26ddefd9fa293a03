package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Authorizer resolves the user and household a connection subscribes to.
// It writes its own error response and returns ok=false to reject.
type Authorizer func(w http.ResponseWriter, r *http.Request) (userID, householdID int64, ok bool)

// HandleWebSocket returns an HTTP handler that authorizes the request,
// upgrades it and runs it as a client of the household's room.
func HandleWebSocket(hub *Hub, authorize Authorizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, householdID, ok := authorize(w, r)
		if !ok {
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // API clients connect from any origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, householdID, userID)
		client.Run(r.Context())
	}
}

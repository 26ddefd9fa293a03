package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/middleware"
	"github.com/dukerupert/smartcart/internal/websocket"
)

// WebSocketAuthorizer authenticates a /ws upgrade. Browsers cannot set headers
// on a WebSocket handshake, so the access token may come from ?token= as well
// as the Authorization header.
func WebSocketAuthorizer(verifier auth.Verifier, members Membership, logger *slog.Logger) websocket.Authorizer {
	return func(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
		token, ok := middleware.BearerToken(r)
		if !ok {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "Access token required")
			return 0, 0, false
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			writeError(w, r, logger, apperr.Unauthorized("Invalid or expired token"))
			return 0, 0, false
		}

		ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: claims.UserID, TokenID: claims.ID})
		householdID, userID, err := householdScope(ctx, r, members)
		if err != nil {
			writeError(w, r, logger, err)
			return 0, 0, false
		}
		return userID, householdID, true
	}
}

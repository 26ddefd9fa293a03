package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/smartcart/internal/grocery"
	"github.com/dukerupert/smartcart/internal/websocket"
)

const notifyTimeout = 30 * time.Second

// ShoppingNotifier tells the rest of a household that someone started
// shopping. *push.Notifier implements it.
type ShoppingNotifier interface {
	ShoppingStarted(ctx context.Context, householdID, shopperID int64, shopperName string)
}

type ShoppingHandler struct {
	members  Membership
	grocery  *grocery.Service
	hub      *websocket.Hub
	notifier ShoppingNotifier
	logger   *slog.Logger
}

// NewShoppingHandler creates the handler. notifier may be nil when push is
// not configured.
func NewShoppingHandler(members Membership, gs *grocery.Service, hub *websocket.Hub, notifier ShoppingNotifier, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{members: members, grocery: gs, hub: hub, notifier: notifier, logger: logger}
}

// Status handles GET /api/shopping-status?householdId=
func (h *ShoppingHandler) Status(w http.ResponseWriter, r *http.Request) {
	householdID, _, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	shopper, err := h.grocery.Shopper(r.Context(), householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"isShopping": shopper != nil,
		"shopper":    shopper,
	})
}

// Start handles POST /api/shopping-status?householdId=
func (h *ShoppingHandler) Start(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	shopper, err := h.grocery.StartShopping(r.Context(), householdID, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage("shopping", "started", userID, map[string]any{"name": shopper.Name}))
	if h.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), notifyTimeout)
			defer cancel()
			h.notifier.ShoppingStarted(ctx, householdID, userID, shopper.Name)
		}()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Shopping started",
		"shopper": shopper,
	})
}

// Finish handles DELETE /api/shopping-status?householdId=
func (h *ShoppingHandler) Finish(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cleared, err := h.grocery.FinishShopping(r.Context(), householdID, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage("shopping", "finished", userID, map[string]any{"itemsCleared": cleared}))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Shopping completed",
		"itemsCleared": cleared,
	})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartcart/internal/grocery"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/websocket"
)

type ItemHandler struct {
	members Membership
	grocery *grocery.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewItemHandler(members Membership, gs *grocery.Service, hub *websocket.Hub, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{members: members, grocery: gs, hub: hub, logger: logger}
}

type itemRequest struct {
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	IsChecked *bool   `json:"isChecked"`
}

// List handles GET /api/items?householdId=
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID, _, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, err := h.grocery.ListItems(r.Context(), householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

// Create handles POST /api/items?householdId=
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var name, category string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Category != nil {
		category = *req.Category
	}
	item, err := h.grocery.AddItem(r.Context(), householdID, userID, name, category)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(householdID, websocket.NewMessage("item", "created", item.ID, map[string]any{"name": item.Name}))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "item": item})
}

// Update handles PUT /api/items/{id}?householdId=
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.grocery.UpdateItem(r.Context(), householdID, id, userID, model.ItemPatch{
		Name:      req.Name,
		Category:  req.Category,
		IsChecked: req.IsChecked,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(householdID, websocket.NewMessage("item", "updated", item.ID, map[string]any{"isChecked": item.IsChecked}))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

// Delete handles DELETE /api/items/{id}?householdId=
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	householdID, _, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.grocery.DeleteItem(r.Context(), householdID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(householdID, websocket.NewMessage("item", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Item deleted successfully"})
}

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/smartcart/internal/household"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/websocket"
)

type MemberHandler struct {
	households *household.Service
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewMemberHandler(households *household.Service, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{households: households, hub: hub, logger: logger}
}

type roleRequest struct {
	TargetUserID flexID `json:"targetUserId"`
	NewRole      string `json:"newRole"`
}

type removeRequest struct {
	RemoveUserID flexID `json:"removeUserId"`
}

// List handles GET /api/household-members?householdId=
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.households)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	members, err := h.households.Members(r.Context(), userID, householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.MemberWithUser{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "members": members})
}

// UpdateRole handles PUT /api/household-members?householdId=
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.households)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	role := model.Role(strings.ToLower(strings.TrimSpace(req.NewRole)))
	if req.TargetUserID <= 0 || role == "" {
		writeFailure(w, http.StatusBadRequest, "Target user ID and new role are required")
		return
	}

	member, err := h.households.ChangeRole(r.Context(), userID, householdID, int64(req.TargetUserID), role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(householdID, websocket.NewMessage("member", "updated", member.UserID, map[string]any{"role": member.Role}))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": member})
}

// Remove handles DELETE /api/household-members?householdId=
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	householdID, userID, err := householdScope(r.Context(), r, h.households)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req removeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.RemoveUserID <= 0 {
		writeFailure(w, http.StatusBadRequest, "User ID to remove is required")
		return
	}

	removed, d, err := h.households.RemoveMember(r.Context(), userID, householdID, int64(req.RemoveUserID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "Member removed successfully"
	if d == household.DeleteHousehold {
		msg = "Household deleted"
		h.hub.CloseRoom(householdID)
	} else {
		h.hub.Broadcast(householdID, websocket.NewMessage("member", "removed", removed.UserID, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg, "removedMember": removed})
}

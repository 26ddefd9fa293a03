package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/household"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/websocket"
)

type HouseholdHandler struct {
	households *household.Service
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewHouseholdHandler(households *household.Service, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: households, hub: hub, logger: logger}
}

type householdRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	InviteCode  string  `json:"inviteCode"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

type inviteCodeRequest struct {
	HouseholdID flexID `json:"householdId"`
}

// List handles GET /api/households
func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	details, err := h.households.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if details == nil {
		details = []model.HouseholdDetails{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "households": details})
}

// Create handles POST /api/households. A body carrying an invite code joins
// that household instead.
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.InviteCode) != "" {
		h.join(w, r, req.InviteCode)
		return
	}

	var name, description string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	hh, member, err := h.households.Create(r.Context(), auth.UserID(r.Context()), name, description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "household": hh, "member": member})
}

// Join handles POST /api/households/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.join(w, r, req.InviteCode)
}

func (h *HouseholdHandler) join(w http.ResponseWriter, r *http.Request, code string) {
	hh, member, err := h.households.Join(r.Context(), auth.UserID(r.Context()), code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(hh.ID, websocket.NewMessage("member", "joined", member.UserID, nil))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "household": hh, "member": member})
}

// Update handles PUT /api/households/{id}
func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req householdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hh, err := h.households.Update(r.Context(), auth.UserID(r.Context()), id, model.HouseholdPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(id, websocket.NewMessage("household", "updated", id, nil))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "household": hh})
}

// Delete handles DELETE /api/households/{id}: the sole owner deletes the
// household, anyone else leaves it.
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID := auth.UserID(r.Context())

	d, err := h.households.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "Left household successfully"
	if d == household.DeleteHousehold {
		msg = "Household deleted"
		h.hub.CloseRoom(id)
	} else {
		h.hub.Broadcast(id, websocket.NewMessage("member", "left", userID, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// Invite handles POST /api/households/{id}/invite
func (h *HouseholdHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.households.SendInvite(r.Context(), auth.UserID(r.Context()), id, req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Invitation sent"})
}

// GenerateInviteCode handles POST /api/generate-invite-code
func (h *HouseholdHandler) GenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	var req inviteCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.HouseholdID <= 0 {
		writeFailure(w, http.StatusBadRequest, "Household ID is required")
		return
	}

	hh, err := h.households.RegenerateInviteCode(r.Context(), auth.UserID(r.Context()), int64(req.HouseholdID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "inviteCode": hh.InviteCode, "household": hh})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartcart/internal/grocery"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/suggest"
)

type SuggestionHandler struct {
	members   Membership
	estimator *suggest.Estimator
	grocery   *grocery.Service
	logger    *slog.Logger
}

func NewSuggestionHandler(members Membership, estimator *suggest.Estimator, gs *grocery.Service, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{members: members, estimator: estimator, grocery: gs, logger: logger}
}

// Suggestions handles GET /api/suggestions?householdId=
func (h *SuggestionHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	householdID, _, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	suggestions, err := h.estimator.Suggest(r.Context(), householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "suggestions": suggestions})
}

// History handles GET /api/purchase-history?householdId=
func (h *SuggestionHandler) History(w http.ResponseWriter, r *http.Request) {
	householdID, _, err := householdScope(r.Context(), r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	history, err := h.grocery.History(r.Context(), householdID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if history == nil {
		history = []model.PurchaseRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

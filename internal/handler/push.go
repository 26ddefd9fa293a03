package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/push"
	"github.com/dukerupert/smartcart/internal/store"
)

type PushHandler struct {
	subs    store.PushStore
	service *push.Service
	logger  *slog.Logger
}

// NewPushHandler creates the handler. A nil service means push is disabled
// and every route answers 404.
func NewPushHandler(subs store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, service: svc, logger: logger}
}

// subscribeRequest accepts both the flat form and the shape of a browser
// PushSubscription serialized with toJSON().
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *PushHandler) disabled(w http.ResponseWriter) bool {
	if h.service == nil {
		writeFailure(w, http.StatusNotFound, "Push notifications are not enabled")
		return true
	}
	return false
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "publicKey": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.P256dh == "" {
		req.P256dh = req.Keys.P256dh
	}
	if req.Auth == "" {
		req.Auth = req.Keys.Auth
	}

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeFailure(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		writeFailure(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	sub, err := h.subs.SaveSubscription(r.Context(), auth.UserID(r.Context()), endpoint, req.P256dh, req.Auth)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "subscription": sub})
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ok, err := h.subs.DeleteSubscription(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeFailure(w, http.StatusNotFound, "Subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Subscription removed"})
}

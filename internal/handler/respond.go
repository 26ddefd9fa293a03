package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/model"
)

const fallbackBody = `{"success":false,"error":"Internal server error"}`

// maxBodyBytes bounds request bodies; every payload here is a small object.
const maxBodyBytes = 1 << 20

// Membership resolves the caller's membership in a household, returning a
// Forbidden error when there is none. *household.Service implements it.
type Membership interface {
	Member(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, fallbackBody)
		return
	}
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// writeFailure writes the error envelope with an explicit status and message.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeError maps err to a response. Anything that is not an *apperr.Error
// is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeFailure(w, status, apperr.Message(err))
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Invalid("Invalid JSON body")
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("Invalid id")
	}
	return id, nil
}

// parseHouseholdID accepts a positive integer household id.
func parseHouseholdID(s string) (int64, error) {
	if s == "" {
		return 0, apperr.Invalid("Household ID is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("Invalid household ID")
	}
	return id, nil
}

// householdScope reads ?householdId= and checks the caller belongs to it.
func householdScope(ctx context.Context, r *http.Request, members Membership) (householdID, userID int64, err error) {
	userID = auth.UserID(ctx)
	householdID, err = parseHouseholdID(r.URL.Query().Get("householdId"))
	if err != nil {
		return 0, 0, err
	}
	if _, err := members.Member(ctx, householdID, userID); err != nil {
		return 0, 0, err
	}
	return householdID, userID, nil
}

// flexID decodes an id sent either as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*f = flexID(id)
	return nil
}

// NotFound answers unknown API routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "Not found")
}

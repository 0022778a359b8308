// Package handler is the JSON transport over the service layer. Handlers
// decode requests, call one service operation, map its error to a status and
// push a change notification to the caller's household.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/middleware"
	"github.com/dukerupert/cohabit/internal/websocket"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindIllegalState:
		return http.StatusConflict
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInvalidArgument, apperr.KindInvalidTaskAssignment:
		return http.StatusBadRequest
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to a response. Unclassified errors are
// logged and reported as a bare "internal error".
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
		return
	}
	if e.Kind == apperr.KindUnavailable {
		logger.Warn("request unavailable", "error", err, "path", r.URL.Path)
	}
	writeJSON(w, statusForKind(e.Kind), errorResponse{Error: e.Message, Code: e.Code, Field: e.Field})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_argument"})
}

// notifier wraps the hub so handlers built without one (tests) skip pushes.
type notifier struct {
	hub *websocket.Hub
}

func (n notifier) household(householdID int64, msg websocket.Message) {
	if n.hub != nil {
		n.hub.Broadcast(householdID, msg)
	}
}

func (n notifier) user(userID int64, msg websocket.Message) {
	if n.hub != nil {
		n.hub.SendToUser(userID, msg)
	}
}

func (n notifier) rebind(userID, householdID int64) {
	if n.hub != nil {
		n.hub.Rebind(userID, householdID)
	}
}

func (n notifier) unbind(householdID int64) {
	if n.hub != nil {
		n.hub.Unbind(householdID)
	}
}

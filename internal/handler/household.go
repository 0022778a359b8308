package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/auth"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/service"
	"github.com/dukerupert/cohabit/internal/websocket"
)

type HouseholdHandler struct {
	households *service.HouseholdService
	notify     notifier
	logger     *slog.Logger
}

func NewHouseholdHandler(households *service.HouseholdService, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: households, notify: notifier{hub: hub}, logger: logger}
}

type createHouseholdRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

type handleJoinRequest struct {
	Accept *bool `json:"accept"`
}

// Current returns the caller's household view, or 204 when they have none.
func (h *HouseholdHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.households.GetCurrentHousehold(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	userID := auth.UserID(r.Context())
	view, err := h.households.CreateHousehold(r.Context(), userID, service.CreateHouseholdInput{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.rebind(userID, view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (h *HouseholdHandler) Find(w http.ResponseWriter, r *http.Request) {
	preview, err := h.households.FindByInviteCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *HouseholdHandler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	householdID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	jr, err := h.households.RequestToJoin(r.Context(), householdID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.household(householdID, websocket.NewMessage("join_request", "created", jr.ID, map[string]any{"user_id": jr.UserID}))
	writeJSON(w, http.StatusCreated, jr)
}

func (h *HouseholdHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	householdID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	reqs, err := h.households.GetPendingRequests(r.Context(), householdID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if reqs == nil {
		reqs = []model.JoinRequestDetail{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *HouseholdHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req handleJoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Accept == nil {
		writeError(w, r, h.logger, apperr.InvalidField("accept", "accept is required"))
		return
	}

	jr, err := h.households.HandleJoinRequest(r.Context(), requestID, *req.Accept, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if jr.Status == model.JoinAccepted {
		h.notify.rebind(jr.UserID, jr.HouseholdID)
		h.notify.household(jr.HouseholdID, websocket.NewMessage("member", "joined", jr.UserID, nil))
		h.notify.user(jr.UserID, websocket.NewMessage("join_request", "accepted", jr.ID, map[string]any{"household_id": jr.HouseholdID}))
	} else {
		h.notify.household(jr.HouseholdID, websocket.NewMessage("join_request", "rejected", jr.ID, nil))
		h.notify.user(jr.UserID, websocket.NewMessage("join_request", "rejected", jr.ID, map[string]any{"household_id": jr.HouseholdID}))
	}
	writeJSON(w, http.StatusOK, jr)
}

func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	res, err := h.households.LeaveHousehold(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.rebind(userID, 0)
	if res.HouseholdDeleted {
		h.notify.unbind(res.HouseholdID)
	} else {
		var extra map[string]any
		if res.NewHostUserID != 0 {
			extra = map[string]any{"new_host_user_id": res.NewHostUserID}
		}
		h.notify.household(res.HouseholdID, websocket.NewMessage("member", "left", userID, extra))
	}
	writeJSON(w, http.StatusOK, res)
}

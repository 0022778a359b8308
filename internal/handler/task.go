package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cohabit/internal/auth"
	"github.com/dukerupert/cohabit/internal/service"
	"github.com/dukerupert/cohabit/internal/websocket"
)

type TaskHandler struct {
	tasks  *service.TaskService
	notify notifier
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, notify: notifier{hub: hub}, logger: logger}
}

type createTaskRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DueDate           *time.Time `json:"due_date"`
	RecurrenceRule    string     `json:"recurrence_rule"`
	Difficulty        string     `json:"difficulty"`
	AssigneeIDs       []int64    `json:"assignee_ids"`
	RotateAssignments bool       `json:"rotate_assignments"`
	EstimatedTime     string     `json:"estimated_time"`
}

type updateTaskRequest struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	DueDate           *time.Time `json:"due_date"`
	ClearDueDate      bool       `json:"clear_due_date"`
	RecurrenceRule    *string    `json:"recurrence_rule"`
	Difficulty        *string    `json:"difficulty"`
	RotateAssignments *bool      `json:"rotate_assignments"`
	EstimatedTime     *string    `json:"estimated_time"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.GetAllTasksForUserHousehold(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	view, err := h.tasks.CreateTask(r.Context(), auth.UserID(r.Context()), service.CreateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		DueDate:           req.DueDate,
		RecurrenceRule:    req.RecurrenceRule,
		Difficulty:        req.Difficulty,
		AssigneeIDs:       req.AssigneeIDs,
		RotateAssignments: req.RotateAssignments,
		EstimatedTime:     req.EstimatedTime,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.household(view.HouseholdID, websocket.NewMessage("task", "created", view.ID, nil))
	writeJSON(w, http.StatusCreated, view)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	view, err := h.tasks.GetTask(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	view, err := h.tasks.UpdateTask(r.Context(), id, auth.UserID(r.Context()), service.UpdateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		DueDate:           req.DueDate,
		ClearDueDate:      req.ClearDueDate,
		RecurrenceRule:    req.RecurrenceRule,
		Difficulty:        req.Difficulty,
		RotateAssignments: req.RotateAssignments,
		EstimatedTime:     req.EstimatedTime,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.household(view.HouseholdID, websocket.NewMessage("task", "updated", view.ID, nil))
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	t, err := h.tasks.DeleteTask(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notify.household(t.HouseholdID, websocket.NewMessage("task", "deleted", t.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	view, err := h.tasks.ToggleTaskCompletion(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	action := "reopened"
	if view.Status.IsCompleted() {
		action = "completed"
	}
	h.notify.household(view.HouseholdID, websocket.NewMessage("task", action, view.ID, map[string]any{"user_id": userID}))
	writeJSON(w, http.StatusOK, view)
}

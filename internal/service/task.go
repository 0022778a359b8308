package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/schedule"
	"github.com/dukerupert/cohabit/internal/store"
	"github.com/dukerupert/cohabit/internal/xp"
)

// TaskView is a task with its household name, creator and ACTIVE assignees
// resolved, plus where it stands against its schedule.
type TaskView struct {
	model.Task
	HouseholdName        string                 `json:"household_name"`
	CreatedByDisplayName string                 `json:"created_by_display_name"`
	Assignees            []model.AssigneeDetail `json:"assignees"`
	Schedule             schedule.Info          `json:"schedule"`
}

type CreateTaskInput struct {
	Title             string
	Description       string
	DueDate           *time.Time
	RecurrenceRule    string
	Difficulty        string
	AssigneeIDs       []int64
	RotateAssignments bool
	EstimatedTime     string
}

// UpdateTaskInput carries only the fields being changed. ClearDueDate
// removes the due date; DueDate sets it.
type UpdateTaskInput struct {
	Title             *string
	Description       *string
	DueDate           *time.Time
	ClearDueDate      bool
	RecurrenceRule    *string
	Difficulty        *string
	RotateAssignments *bool
	EstimatedTime     *string
}

type TaskOptions struct {
	StrictUncomplete bool
}

type TaskService struct {
	db               *sql.DB
	logger           *slog.Logger
	strictUncomplete bool
}

func NewTaskService(db *sql.DB, logger *slog.Logger, opts TaskOptions) *TaskService {
	return &TaskService{
		db:               db,
		logger:           logger,
		strictUncomplete: opts.StrictUncomplete,
	}
}

func parseRecurrence(s string) (model.Recurrence, error) {
	r, ok := model.ParseRecurrence(s)
	if !ok {
		return "", apperr.InvalidField("recurrence_rule", "unknown recurrence rule %q", s)
	}
	return r, nil
}

func errRotation() error {
	return apperr.ErrInvalidTaskAssignment.WithMessage(
		"rotating assignments need a recurring task and at least two assignees")
}

// taskForCaller loads a task the caller is allowed to touch.
func taskForCaller(ctx context.Context, st stores, taskID, userID int64) (*model.Task, error) {
	t, err := st.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrTaskNotFound
	}
	m, err := st.requireMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m.HouseholdID != t.HouseholdID {
		return nil, apperr.ErrNotInHousehold.WithMessage("you are not a member of this task's household")
	}
	return t, nil
}

func buildTaskView(ctx context.Context, st stores, t *model.Task, householdName string) (*TaskView, error) {
	v := &TaskView{
		Task:          *t,
		HouseholdName: householdName,
		Schedule:      schedule.Compute(*t, time.Now().UTC()),
	}

	creator, err := st.users.GetByID(ctx, t.CreatedByUserID)
	if err != nil {
		return nil, err
	}
	if creator != nil {
		v.CreatedByDisplayName = creator.DisplayName
	}

	v.Assignees, err = st.tasks.ListAssigneeDetails(ctx, t.ID, model.AssignmentActive)
	if err != nil {
		return nil, err
	}
	if v.Assignees == nil {
		v.Assignees = []model.AssigneeDetail{}
	}
	return v, nil
}

func householdName(ctx context.Context, st stores, householdID int64) (string, error) {
	h, err := st.households.GetByID(ctx, householdID)
	if err != nil || h == nil {
		return "", err
	}
	return h.Name, nil
}

func taskView(ctx context.Context, st stores, t *model.Task) (*TaskView, error) {
	name, err := householdName(ctx, st, t.HouseholdID)
	if err != nil {
		return nil, err
	}
	return buildTaskView(ctx, st, t, name)
}

// CreateTask creates an OPEN task in the creator's household. With no
// assignees the creator is assigned.
func (s *TaskService) CreateTask(ctx context.Context, creatorID int64, in CreateTaskInput) (*TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.InvalidField("title", "title is required")
	}
	recurrence, err := parseRecurrence(in.RecurrenceRule)
	if err != nil {
		return nil, err
	}

	var view *TaskView
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		m, err := st.requireMembership(ctx, creatorID)
		if err != nil {
			return err
		}

		assignees := dedupeIDs(in.AssigneeIDs)
		if len(assignees) == 0 {
			assignees = []int64{creatorID}
		}
		for _, id := range assignees {
			if err := validateAssignee(ctx, st, id, m.HouseholdID); err != nil {
				return err
			}
		}
		if in.RotateAssignments && (recurrence == model.RecurrenceNone || len(assignees) < 2) {
			return errRotation()
		}

		difficulty := model.ParseDifficulty(in.Difficulty)
		t, err := st.tasks.Create(ctx, &model.Task{
			HouseholdID:       m.HouseholdID,
			Title:             title,
			Description:       strings.TrimSpace(in.Description),
			Difficulty:        difficulty,
			XPPoints:          xp.ForDifficulty(difficulty),
			Status:            model.TaskOpen,
			DueDate:           in.DueDate,
			RecurrenceRule:    recurrence,
			RotateAssignments: in.RotateAssignments,
			EstimatedTime:     strings.TrimSpace(in.EstimatedTime),
			CreatedByUserID:   creatorID,
		})
		if err != nil {
			return err
		}
		for _, id := range assignees {
			if err := st.tasks.AddAssignment(ctx, t.ID, id, model.AssignmentActive); err != nil {
				return err
			}
		}

		view, err = taskView(ctx, st, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", view.ID,
		"household_id", view.HouseholdID,
		"user_id", creatorID,
		"assignees", len(view.Assignees),
	)
	return view, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func validateAssignee(ctx context.Context, st stores, userID, householdID int64) error {
	u, err := st.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.ErrInvalidTaskAssignment.WithMessage("assignee %d does not exist", userID)
	}
	m, err := st.households.GetMembershipByUser(ctx, userID)
	if err != nil {
		return err
	}
	if m == nil || m.HouseholdID != householdID {
		return apperr.ErrInvalidTaskAssignment.WithMessage("%s is not a member of this household", u.Username)
	}
	return nil
}

// UpdateTask applies the fields present in in. Difficulty and recurrence are
// validated and mapped exactly as at creation.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, callerID int64, in UpdateTaskInput) (*TaskView, error) {
	var view *TaskView
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		t, err := taskForCaller(ctx, st, taskID, callerID)
		if err != nil {
			return err
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.InvalidField("title", "title is required")
			}
			t.Title = title
		}
		if in.Description != nil {
			t.Description = strings.TrimSpace(*in.Description)
		}
		if in.ClearDueDate {
			t.DueDate = nil
		} else if in.DueDate != nil {
			t.DueDate = in.DueDate
		}
		if in.RecurrenceRule != nil {
			if t.RecurrenceRule, err = parseRecurrence(*in.RecurrenceRule); err != nil {
				return err
			}
		}
		if in.Difficulty != nil {
			t.Difficulty = model.ParseDifficulty(*in.Difficulty)
			t.XPPoints = xp.ForDifficulty(t.Difficulty)
		}
		if in.RotateAssignments != nil {
			t.RotateAssignments = *in.RotateAssignments
		}
		if in.EstimatedTime != nil {
			t.EstimatedTime = strings.TrimSpace(*in.EstimatedTime)
		}

		if t.RotateAssignments {
			assignees, err := st.tasks.ListAssigneeDetails(ctx, t.ID, model.AssignmentActive)
			if err != nil {
				return err
			}
			if t.RecurrenceRule == model.RecurrenceNone || len(assignees) < 2 {
				return errRotation()
			}
		}

		updated, err := st.tasks.Update(ctx, t)
		if err != nil {
			return err
		}
		view, err = taskView(ctx, st, updated)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task updated", "task_id", taskID, "user_id", callerID)
	return view, nil
}

// ToggleTaskCompletion flips a task between OPEN and COMPLETED, crediting
// the caller with the task's XP on completion and reversing the amount
// recorded on their completion when reopening.
func (s *TaskService) ToggleTaskCompletion(ctx context.Context, taskID, callerID int64) (*TaskView, error) {
	var view *TaskView
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		t, err := taskForCaller(ctx, st, taskID, callerID)
		if err != nil {
			return err
		}

		if t.Status.IsCompleted() {
			err = s.uncomplete(ctx, st, t, callerID)
		} else {
			err = s.complete(ctx, st, t, callerID)
		}
		if err != nil {
			return err
		}

		t, err = st.tasks.GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		view, err = taskView(ctx, st, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *TaskService) complete(ctx context.Context, st stores, t *model.Task, userID int64) error {
	if err := st.tasks.SetStatus(ctx, t.ID, model.TaskCompleted); err != nil {
		return err
	}

	existing, err := st.tasks.GetCompletion(ctx, t.ID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Warn("task completed with existing completion; not awarding again",
			"task_id", t.ID, "user_id", userID, "completion_id", existing.ID)
		return nil
	}

	if _, err := st.tasks.CreateCompletion(ctx, t.ID, userID, t.XPPoints); err != nil {
		return err
	}
	u, err := st.users.AddXP(ctx, userID, t.XPPoints)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.ErrUserNotFound
	}

	s.logger.Info("task completed",
		"task_id", t.ID, "user_id", userID, "xp_awarded", t.XPPoints,
		"total_xp", u.TotalXP, "level", u.Level)
	return nil
}

func (s *TaskService) uncomplete(ctx context.Context, st stores, t *model.Task, userID int64) error {
	if err := st.tasks.SetStatus(ctx, t.ID, model.TaskOpen); err != nil {
		return err
	}

	c, err := st.tasks.GetCompletion(ctx, t.ID, userID)
	if err != nil {
		return err
	}
	if c == nil {
		if s.strictUncomplete {
			return apperr.ErrIntegrity.WithMessage("task %d is completed but user %d holds no completion", t.ID, userID)
		}
		s.logger.Warn("reopened task without completion record; skipping xp reversal",
			"task_id", t.ID, "user_id", userID)
		return nil
	}

	u, err := st.users.AddXP(ctx, userID, -c.XPAwarded)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.ErrUserNotFound
	}
	if err := st.tasks.DeleteCompletion(ctx, c.ID); err != nil {
		return err
	}

	s.logger.Info("task reopened",
		"task_id", t.ID, "user_id", userID, "xp_reversed", c.XPAwarded,
		"total_xp", u.TotalXP, "level", u.Level)
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID, callerID int64) (*TaskView, error) {
	st := newStores(s.db)
	t, err := taskForCaller(ctx, st, taskID, callerID)
	if err != nil {
		return nil, err
	}
	return taskView(ctx, st, t)
}

// DeleteTask removes a task with its assignments and completions. XP already
// credited for past completions stays with the users.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, callerID int64) (*model.Task, error) {
	var deleted *model.Task
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		t, err := taskForCaller(ctx, st, taskID, callerID)
		if err != nil {
			return err
		}
		deleted = t
		return st.tasks.Delete(ctx, t.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task deleted", "task_id", taskID, "household_id", deleted.HouseholdID, "user_id", callerID)
	return deleted, nil
}

// GetAllTasksForUserHousehold lists every task in the caller's household,
// whatever its status.
func (s *TaskService) GetAllTasksForUserHousehold(ctx context.Context, userID int64) ([]TaskView, error) {
	st := newStores(s.db)
	m, err := st.requireMembership(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, err := householdName(ctx, st, m.HouseholdID)
	if err != nil {
		return nil, err
	}

	tasks, err := st.tasks.ListByHousehold(ctx, m.HouseholdID)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		v, err := buildTaskView(ctx, st, &tasks[i], name)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

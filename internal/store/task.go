package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/cohabit/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var dueDate sql.NullTime
	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Title, &t.Description, &t.Difficulty, &t.XPPoints,
		&t.Status, &dueDate, &t.RecurrenceRule, &t.RotateAssignments, &t.EstimatedTime,
		&t.CreatedByUserID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DueDate = nullTime(dueDate)
	return &t, nil
}

func scanTaskCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	err := scanner.Scan(&c.ID, &c.TaskID, &c.CompletedByUserID, &c.XPAwarded, &c.VerificationStatus, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const taskCols = `id, household_id, title, description, difficulty, xp_points, status, due_date,
	recurrence_rule, rotate_assignments, estimated_time, created_by_user_id, created_at, updated_at`

const taskCompletionCols = `id, task_id, completed_by_user_id, xp_awarded, verification_status, completed_at`

func (s *TaskStore) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (household_id, title, description, difficulty, xp_points, status, due_date,
			recurrence_rule, rotate_assignments, estimated_time, created_by_user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.HouseholdID, t.Title, t.Description, t.Difficulty, t.XPPoints, t.Status, t.DueDate,
		t.RecurrenceRule, t.RotateAssignments, t.EstimatedTime, t.CreatedByUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByHousehold returns every task in the household regardless of status,
// newest first.
func (s *TaskStore) ListByHousehold(ctx context.Context, householdID int64) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE household_id = ? ORDER BY created_at DESC, id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update writes every mutable column of t.
func (s *TaskStore) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, difficulty = ?, xp_points = ?, status = ?,
			due_date = ?, recurrence_rule = ?, rotate_assignments = ?, estimated_time = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Title, t.Description, t.Difficulty, t.XPPoints, t.Status,
		t.DueDate, t.RecurrenceRule, t.RotateAssignments, t.EstimatedTime, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, t.ID)
}

func (s *TaskStore) SetStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// Delete removes the task. Assignments and completions cascade.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) AddAssignment(ctx context.Context, taskID, userID int64, status model.AssignmentStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_assignments (task_id, assignee_user_id, status) VALUES (?, ?, ?)`,
		taskID, userID, status,
	)
	if err != nil {
		return fmt.Errorf("add assignment: %w", err)
	}
	return nil
}

// ListAssigneeDetails returns the task's assignments in the given status,
// joined with each assignee's user record, in assignment order.
func (s *TaskStore) ListAssigneeDetails(ctx context.Context, taskID int64, status model.AssignmentStatus) ([]model.AssigneeDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.display_name, ta.status, ta.assigned_at
		 FROM task_assignments ta
		 JOIN users u ON u.id = ta.assignee_user_id
		 WHERE ta.task_id = ? AND ta.status = ?
		 ORDER BY ta.id ASC`,
		taskID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var out []model.AssigneeDetail
	for rows.Next() {
		var a model.AssigneeDetail
		if err := rows.Scan(&a.UserID, &a.Username, &a.DisplayName, &a.AssignmentStatus, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetCompletion returns userID's completion of taskID, or nil.
func (s *TaskStore) GetCompletion(ctx context.Context, taskID, userID int64) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskCompletionCols+` FROM task_completions
		 WHERE task_id = ? AND completed_by_user_id = ?
		 ORDER BY id DESC LIMIT 1`,
		taskID, userID,
	)
	c, err := scanTaskCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *TaskStore) CreateCompletion(ctx context.Context, taskID, userID int64, xpAwarded int) (*model.TaskCompletion, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (task_id, completed_by_user_id, xp_awarded, verification_status)
		 VALUES (?, ?, ?, ?)`,
		taskID, userID, xpAwarded, model.VerificationAutoApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCompletionCols+` FROM task_completions WHERE id = ?`, id)
	c, err := scanTaskCompletion(row)
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *TaskStore) DeleteCompletion(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// CountCompletionsByUser counts every completion the user holds, across all
// households.
func (s *TaskStore) CountCompletionsByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_completions WHERE completed_by_user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

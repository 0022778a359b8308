package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/cohabit/internal/model"
)

func newTestTask(householdID, creatorID int64) *model.Task {
	return &model.Task{
		HouseholdID:     householdID,
		Title:           "Dishes",
		Difficulty:      model.DifficultyHard,
		XPPoints:        30,
		Status:          model.TaskOpen,
		RecurrenceRule:  model.RecurrenceWeekly,
		CreatedByUserID: creatorID,
	}
}

func TestTaskCreate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	h := createTestHousehold(t, db, alice, "ABC123")

	due := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	in := newTestTask(h.ID, alice.ID)
	in.DueDate = &due
	in.RotateAssignments = true

	task, err := NewTaskStore(db).Create(ctx, in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if task.XPPoints != 30 {
		t.Errorf("xp_points = %d, want 30", task.XPPoints)
	}
	if !task.RotateAssignments {
		t.Error("expected rotate_assignments = true")
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("due_date = %v, want %v", task.DueDate, due)
	}
}

func TestTaskCreateWithoutDueDate(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	h := createTestHousehold(t, db, alice, "ABC123")

	task, err := NewTaskStore(db).Create(context.Background(), newTestTask(h.ID, alice.ID))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.DueDate != nil {
		t.Errorf("due_date = %v, want nil", task.DueDate)
	}
}

func TestTaskUpdateAndStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTaskStore(db)
	alice := createTestUser(t, db, "alice")
	h := createTestHousehold(t, db, alice, "ABC123")

	task, err := ts.Create(ctx, newTestTask(h.ID, alice.ID))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	task.Title = "Laundry"
	task.Difficulty = model.DifficultyEasy
	task.XPPoints = 10
	updated, err := ts.Update(ctx, task)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "Laundry" || updated.XPPoints != 10 {
		t.Errorf("updated = %+v", updated)
	}

	if err := ts.SetStatus(ctx, task.ID, model.TaskCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := ts.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != model.TaskCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.TaskCompleted)
	}
}

func TestTaskListByHousehold(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTaskStore(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	h := createTestHousehold(t, db, alice, "ABC123")
	other := createTestHousehold(t, db, bob, "XYZ789")

	for i := 0; i < 2; i++ {
		if _, err := ts.Create(ctx, newTestTask(h.ID, alice.ID)); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	if _, err := ts.Create(ctx, newTestTask(other.ID, bob.ID)); err != nil {
		t.Fatalf("create task: %v", err)
	}

	tasks, err := ts.ListByHousehold(ctx, h.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("len = %d, want 2", len(tasks))
	}
}

func TestTaskAssignments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTaskStore(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	h := createTestHousehold(t, db, alice, "ABC123")

	task, err := ts.Create(ctx, newTestTask(h.ID, alice.ID))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	for _, u := range []*model.User{alice, bob} {
		if err := ts.AddAssignment(ctx, task.ID, u.ID, model.AssignmentActive); err != nil {
			t.Fatalf("add assignment: %v", err)
		}
	}
	if err := ts.AddAssignment(ctx, task.ID, bob.ID, model.AssignmentActive); !IsUniqueViolation(err) {
		t.Errorf("duplicate assignment err = %v, want unique violation", err)
	}

	assignees, err := ts.ListAssigneeDetails(ctx, task.ID, model.AssignmentActive)
	if err != nil {
		t.Fatalf("list assignees: %v", err)
	}
	if len(assignees) != 2 {
		t.Fatalf("len = %d, want 2", len(assignees))
	}
	if assignees[0].UserID != alice.ID || assignees[1].UserID != bob.ID {
		t.Errorf("assignees = %+v", assignees)
	}
}

func TestTaskCompletions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTaskStore(db)
	alice := createTestUser(t, db, "alice")
	h := createTestHousehold(t, db, alice, "ABC123")

	task, err := ts.Create(ctx, newTestTask(h.ID, alice.ID))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	c, err := ts.CreateCompletion(ctx, task.ID, alice.ID, 30)
	if err != nil {
		t.Fatalf("create completion: %v", err)
	}
	if c.XPAwarded != 30 {
		t.Errorf("xp_awarded = %d, want 30", c.XPAwarded)
	}
	if c.VerificationStatus != model.VerificationAutoApproved {
		t.Errorf("verification_status = %q, want %q", c.VerificationStatus, model.VerificationAutoApproved)
	}

	got, err := ts.GetCompletion(ctx, task.ID, alice.ID)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if got == nil || got.ID != c.ID {
		t.Fatalf("completion = %v, want id %d", got, c.ID)
	}

	n, err := ts.CountCompletionsByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("count completions: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	if err := ts.DeleteCompletion(ctx, c.ID); err != nil {
		t.Fatalf("delete completion: %v", err)
	}
	got, err = ts.GetCompletion(ctx, task.ID, alice.ID)
	if err != nil {
		t.Fatalf("get completion: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestTaskDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTaskStore(db)
	alice := createTestUser(t, db, "alice")
	h := createTestHousehold(t, db, alice, "ABC123")

	task, err := ts.Create(ctx, newTestTask(h.ID, alice.ID))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := ts.AddAssignment(ctx, task.ID, alice.ID, model.AssignmentActive); err != nil {
		t.Fatalf("add assignment: %v", err)
	}
	if _, err := ts.CreateCompletion(ctx, task.ID, alice.ID, 30); err != nil {
		t.Fatalf("create completion: %v", err)
	}

	if err := ts.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	for _, table := range []string{"task_assignments", "task_completions"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s count = %d, want 0", table, n)
		}
	}
}

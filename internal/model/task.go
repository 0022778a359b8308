package model

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskOpen       TaskStatus = "OPEN"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskVerified   TaskStatus = "VERIFIED"
)

// IsCompleted reports whether the status counts as done for toggling.
func (s TaskStatus) IsCompleted() bool {
	return s == TaskCompleted || s == TaskVerified
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty is lenient: anything other than EASY or HARD
// (case-insensitive) is MEDIUM.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToUpper(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
	RecurrenceCustom  Recurrence = "CUSTOM"
)

// Recurrences lists every accepted recurrence rule in display order.
var Recurrences = []Recurrence{
	RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom,
}

// ParseRecurrence matches s case-insensitively against the closed set of
// rules. An empty string means RecurrenceNone.
func ParseRecurrence(s string) (Recurrence, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RecurrenceNone, true
	}
	for _, r := range Recurrences {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type AssignmentStatus string

const (
	AssignmentActive        AssignmentStatus = "ACTIVE"
	AssignmentSwapRequested AssignmentStatus = "SWAP_REQUESTED"
	AssignmentSwapped       AssignmentStatus = "SWAPPED"
	AssignmentCanceled      AssignmentStatus = "CANCELED"
)

const VerificationAutoApproved = "AUTO_APPROVED"

type Task struct {
	ID                int64      `json:"id"`
	HouseholdID       int64      `json:"household_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Difficulty        Difficulty `json:"difficulty"`
	XPPoints          int        `json:"xp_points"`
	Status            TaskStatus `json:"status"`
	DueDate           *time.Time `json:"due_date"`
	RecurrenceRule    Recurrence `json:"recurrence_rule"`
	RotateAssignments bool       `json:"rotate_assignments"`
	EstimatedTime     string     `json:"estimated_time"`
	CreatedByUserID   int64      `json:"created_by_user_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type TaskAssignment struct {
	ID             int64            `json:"id"`
	TaskID         int64            `json:"task_id"`
	AssigneeUserID int64            `json:"assignee_user_id"`
	Status         AssignmentStatus `json:"status"`
	AssignedAt     time.Time        `json:"assigned_at"`
}

// AssigneeDetail is an assignment joined with the assignee's user record.
type AssigneeDetail struct {
	UserID           int64            `json:"user_id"`
	Username         string           `json:"username"`
	DisplayName      string           `json:"display_name"`
	AssignmentStatus AssignmentStatus `json:"assignment_status"`
	AssignedAt       time.Time        `json:"assigned_at"`
}

type TaskCompletion struct {
	ID                 int64     `json:"id"`
	TaskID             int64     `json:"task_id"`
	CompletedByUserID  int64     `json:"completed_by_user_id"`
	XPAwarded          int       `json:"xp_awarded"`
	VerificationStatus string    `json:"verification_status"`
	CompletedAt        time.Time `json:"completed_at"`
}

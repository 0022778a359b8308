// Package schedule derives where a task stands against its due date and
// recurrence rule. Nothing here is stored; it is computed on read.
package schedule

import (
	"time"

	"github.com/dukerupert/cohabit/internal/model"
)

type Status string

const (
	StatusUnscheduled Status = "unscheduled"
	StatusUpcoming    Status = "upcoming"
	StatusDueToday    Status = "due_today"
	StatusOverdue     Status = "overdue"
	StatusDone        Status = "done"
)

// maxOccurrences caps the walk from the anchor to today.
const maxOccurrences = 10000

type Info struct {
	Status Status `json:"status"`
	// DueOn is the day of the occurrence currently in play.
	DueOn *time.Time `json:"due_on,omitempty"`
	// NextDue is the first occurrence after today, for recurring tasks.
	NextDue *time.Time `json:"next_due,omitempty"`
}

// step returns the interval between occurrences. CUSTOM rules carry no
// interval and are scheduled like one-off tasks.
func step(r model.Recurrence) (years, months, days int, ok bool) {
	switch r {
	case model.RecurrenceDaily:
		return 0, 0, 1, true
	case model.RecurrenceWeekly:
		return 0, 0, 7, true
	case model.RecurrenceMonthly:
		return 0, 1, 0, true
	default:
		return 0, 0, 0, false
	}
}

// Compute reports the schedule of t as of now. Days are UTC calendar days.
// Recurring tasks are anchored on their due date, or on their creation time
// when none is set.
func Compute(t model.Task, now time.Time) Info {
	today := startOfDay(now)
	done := t.Status.IsCompleted()

	y, m, d, recurring := step(t.RecurrenceRule)
	if !recurring {
		if t.DueDate == nil {
			if done {
				return Info{Status: StatusDone}
			}
			return Info{Status: StatusUnscheduled}
		}
		due := startOfDay(*t.DueDate)
		return Info{Status: classify(due, today, done), DueOn: &due}
	}

	anchor := t.CreatedAt
	if t.DueDate != nil {
		anchor = *t.DueDate
	}
	anchor = startOfDay(anchor)

	if anchor.After(today) {
		info := Info{Status: StatusUpcoming, DueOn: &anchor}
		if done {
			info.Status = StatusDone
		}
		next := occurrence(anchor, y, m, d)
		info.NextDue = &next
		return info
	}

	// Each occurrence is computed from the anchor, so a month-end anchor
	// returns to its own day after a short month.
	current := anchor
	var next time.Time
	for n := 1; n <= maxOccurrences; n++ {
		occ := occurrence(anchor, y*n, m*n, d*n)
		if occ.After(today) {
			next = occ
			break
		}
		current = occ
	}

	info := Info{Status: classify(current, today, done), DueOn: &current}
	if !next.IsZero() {
		info.NextDue = &next
	}
	return info
}

func classify(due, today time.Time, done bool) Status {
	switch {
	case done:
		return StatusDone
	case due.Before(today):
		return StatusOverdue
	case due.Equal(today):
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}

// occurrence offsets anchor like AddDate, except that a month offset with no
// day component clamps to the last day of the target month instead of
// spilling into the next one (Jan 31 + 1 month is Feb 28, not Mar 3).
func occurrence(anchor time.Time, years, months, days int) time.Time {
	if days != 0 || (years == 0 && months == 0) {
		return anchor.AddDate(years, months, days)
	}
	first := time.Date(anchor.Year()+years, anchor.Month()+time.Month(months), 1, 0, 0, 0, 0, anchor.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(anchor.Day(), last), 0, 0, 0, 0, anchor.Location())
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

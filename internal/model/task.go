package model

import "time"

// TaskStatus is the lifecycle status of a task definition.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusArchived TaskStatus = "archived"
)

// Frequency is a recurrence frequency.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurrenceRule describes a repeating schedule. Weekday numbering follows
// time.Weekday (0 = Sunday).
//
// Monthly rules targeting days that a month does not have (e.g. the 31st)
// simply skip that month; this is the expansion library's native behavior
// and is kept as-is.
type RecurrenceRule struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"`
	ByWeekday  []int      `json:"by_weekday,omitempty"`
	ByMonthDay []int      `json:"by_month_day,omitempty"`
	Count      int        `json:"count,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

// Task is a user task. A task with a non-nil Recurrence is a recurrence
// definition whose concrete occurrences live in TaskInstance rows; a task
// with nil Recurrence is a one-off scheduled on ScheduledOn.
type Task struct {
	ID     string
	UserID string
	Title  string
	Notes  string

	// ScheduledOn is the calendar date of a non-recurring task (zero for
	// recurring definitions).
	ScheduledOn time.Time

	// DefaultTime is the "HH:MM" time-of-day applied to materialized
	// occurrences, interpreted in the fixed reference timezone.
	DefaultTime string

	Status     TaskStatus
	Recurrence *RecurrenceRule

	// StartDate is the first date a recurring rule applies from.
	StartDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the task is a recurrence definition.
func (t Task) IsRecurring() bool {
	return t.Recurrence != nil
}

// InstanceStatus is the lifecycle status of a materialized occurrence.
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusSkipped   InstanceStatus = "skipped"
)

// TaskInstance is one concrete occurrence of a recurring task.
// (TaskID, OccurrenceDate) is unique.
type TaskInstance struct {
	ID             string
	TaskID         string
	OccurrenceDate time.Time

	// ScheduledAt is OccurrenceDate combined with the parent's DefaultTime
	// in the reference timezone. Nil when the parent has no default time.
	ScheduledAt *time.Time

	Status      InstanceStatus
	CompletedAt *time.Time
	CreatedAt   time.Time
}

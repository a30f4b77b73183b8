package recurrence

import "errors"

// Rule validation errors. Rules are rejected here at creation time so the
// expansion path never sees an invalid rule.
var (
	ErrNilRule          = errors.New("recurrence rule is required")
	ErrInvalidInterval  = errors.New("recurrence interval must be at least 1")
	ErrUnknownFrequency = errors.New("unknown recurrence frequency")
	ErrNoWeekdays       = errors.New("weekly rule requires at least one weekday")
	ErrInvalidWeekday   = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidMonthDay  = errors.New("month day must be between 1 and 31")
	ErrNegativeCount    = errors.New("recurrence count must not be negative")
	ErrUntilBeforeStart = errors.New("recurrence end date is before the start date")
	ErrInvalidTimeOfDay = errors.New("default time must be in HH:MM format")
)

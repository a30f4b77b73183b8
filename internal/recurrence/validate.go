package recurrence

import (
	"time"

	"taskmirror/internal/model"
)

// ValidateRule checks a rule at creation time. Expansion assumes rules have
// passed this gate.
func ValidateRule(rule *model.RecurrenceRule, start time.Time) error {
	if rule == nil {
		return ErrNilRule
	}
	if rule.Interval <= 0 {
		return ErrInvalidInterval
	}

	switch rule.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		return ErrUnknownFrequency
	}

	if rule.Frequency == model.FrequencyWeekly && len(rule.ByWeekday) == 0 {
		return ErrNoWeekdays
	}
	for _, wd := range rule.ByWeekday {
		if wd < 0 || wd > 6 {
			return ErrInvalidWeekday
		}
	}
	for _, md := range rule.ByMonthDay {
		if md < 1 || md > 31 {
			return ErrInvalidMonthDay
		}
	}
	if rule.Count < 0 {
		return ErrNegativeCount
	}
	if rule.Until != nil && !start.IsZero() && rule.Until.Before(start) {
		return ErrUntilBeforeStart
	}
	return nil
}

// ValidateTimeOfDay checks an "HH:MM" default time string. Empty is valid
// (the occurrence carries a date only).
func ValidateTimeOfDay(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return ErrInvalidTimeOfDay
	}
	return nil
}

package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"taskmirror/internal/model"
)

// maxOccurrencesPerRule is a safety cap against pathological rules; the
// horizon window keeps real expansions far below it.
const maxOccurrencesPerRule = 1000

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Expand computes the occurrence dates of a validated rule within
// [from, to] (inclusive), forward only. Dates are returned at midnight UTC;
// time-of-day is applied later during materialization.
//
// Monthly rules whose target day does not exist in a month (the 31st in a
// 30-day month, Feb 29 outside leap years) skip that month. That is the
// rrule library's behavior and is intentionally not special-cased.
func Expand(rule *model.RecurrenceRule, start, from, to time.Time) ([]time.Time, error) {
	opt := rrule.ROption{
		Interval: rule.Interval,
		Dtstart:  dateOnly(start),
	}

	switch rule.Frequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, ErrUnknownFrequency
	}

	for _, wd := range rule.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
	}
	opt.Bymonthday = append(opt.Bymonthday, rule.ByMonthDay...)

	if rule.Count > 0 {
		opt.Count = rule.Count
	}
	if rule.Until != nil {
		opt.Until = dateOnly(*rule.Until)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	occs := r.Between(dateOnly(from).Add(-time.Second), dateOnly(to), true)
	if len(occs) > maxOccurrencesPerRule {
		occs = occs[:maxOccurrencesPerRule]
	}

	dates := make([]time.Time, 0, len(occs))
	for _, occ := range occs {
		dates = append(dates, dateOnly(occ))
	}
	return dates, nil
}

// dateOnly truncates to midnight UTC. All occurrence-date math happens in
// UTC to keep date arithmetic DST-free.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

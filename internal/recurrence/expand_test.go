package recurrence

import (
	"testing"
	"time"

	"taskmirror/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandEveryMondayWednesdayOverTwoWeeks(t *testing.T) {
	// 2026-09-07 is a Monday.
	start := date(2026, time.September, 7)
	rule := &model.RecurrenceRule{
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		ByWeekday: []int{1, 3}, // Monday, Wednesday
	}

	dates, err := Expand(rule, start, start, start.AddDate(0, 0, 13))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("expected 4 occurrences, got %d: %v", len(dates), dates)
	}
	for _, d := range dates {
		if wd := d.Weekday(); wd != time.Monday && wd != time.Wednesday {
			t.Errorf("occurrence %v falls on %v", d, wd)
		}
	}
	if !dates[0].Equal(start) {
		t.Errorf("first occurrence should be the start Monday, got %v", dates[0])
	}
}

func TestExpandDailyWithInterval(t *testing.T) {
	start := date(2026, time.March, 1)
	rule := &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 3}

	dates, err := Expand(rule, start, start, start.AddDate(0, 0, 9))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		date(2026, time.March, 1),
		date(2026, time.March, 4),
		date(2026, time.March, 7),
		date(2026, time.March, 10),
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %v", len(want), len(dates), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("occurrence %d: want %v, got %v", i, want[i], dates[i])
		}
	}
}

func TestExpandMonthly31stSkipsShortMonths(t *testing.T) {
	start := date(2026, time.January, 1)
	rule := &model.RecurrenceRule{
		Frequency:  model.FrequencyMonthly,
		Interval:   1,
		ByMonthDay: []int{31},
	}

	// Jan through Apr: only January and March have a 31st.
	dates, err := Expand(rule, start, start, date(2026, time.April, 30))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []time.Time{
		date(2026, time.January, 31),
		date(2026, time.March, 31),
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %v", len(want), len(dates), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("occurrence %d: want %v, got %v", i, want[i], dates[i])
		}
	}
}

func TestExpandRespectsCount(t *testing.T) {
	start := date(2026, time.June, 1)
	rule := &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1, Count: 3}

	dates, err := Expand(rule, start, start, start.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(dates) != 3 {
		t.Fatalf("expected count to cap at 3, got %d", len(dates))
	}
}

func TestExpandRespectsUntil(t *testing.T) {
	start := date(2026, time.June, 1)
	until := date(2026, time.June, 5)
	rule := &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1, Until: &until}

	dates, err := Expand(rule, start, start, start.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(dates) != 5 {
		t.Fatalf("expected 5 occurrences up to until, got %d: %v", len(dates), dates)
	}
}

func TestExpandForwardOnly(t *testing.T) {
	start := date(2026, time.January, 1)
	rule := &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1}

	// Window starts after the rule start: nothing before the window leaks in.
	from := date(2026, time.February, 1)
	dates, err := Expand(rule, start, from, from.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(dates) != 3 {
		t.Fatalf("expected 3 occurrences, got %d: %v", len(dates), dates)
	}
	if dates[0].Before(from) {
		t.Errorf("occurrence before window start: %v", dates[0])
	}
}

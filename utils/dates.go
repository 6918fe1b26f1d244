package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

const DaysPerWeek = 7

// WeekStart returns midnight of the Monday starting t's ISO week, in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -DayIndex(t))
}

// DayIndex maps Monday..Sunday to 0..6.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekKey is the document id of the week containing t.
func WeekKey(t time.Time) string {
	return WeekStart(t).Format(DateLayout)
}

// ParseWeekKey parses a week key and rejects dates that are not Mondays.
func ParseWeekKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week key %q: %w", key, err)
	}
	if t.Weekday() != time.Monday {
		return time.Time{}, fmt.Errorf("week key %q is not a Monday", key)
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// TrailingWeekKeys lists n week keys ending with the week of t, newest first.
func TrailingWeekKeys(t time.Time, n int) []string {
	start := WeekStart(t)
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, start.AddDate(0, 0, -7*i).Format(DateLayout))
	}
	return keys
}

// NextMidnight returns the first instant of the day after t.
func NextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

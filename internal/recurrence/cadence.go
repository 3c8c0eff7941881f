// Package recurrence computes the next run time of a backup schedule.
package recurrence

import (
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

var freqFromName = map[string]Freq{
	"daily":   Daily,
	"weekly":  Weekly,
	"monthly": Monthly,
}

// ParseFreq maps a schedule type to a Freq. Unknown types run daily.
func ParseFreq(name string) Freq {
	if f, ok := freqFromName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f
	}
	return Daily
}

const (
	defaultHour   = 2
	defaultMinute = 0
)

// Cadence is the schedule-defining part of a backup schedule.
type Cadence struct {
	Type       string
	TimeOfDay  string // "HH:MM"
	DayOfWeek  *int   // 0 = Sunday, weekly only
	DayOfMonth *int   // 1-31, monthly only
}

// ParseTimeOfDay parses "HH:MM". Missing or malformed values yield 02:00.
func ParseTimeOfDay(s string) (hour, minute int) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return defaultHour, defaultMinute
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return defaultHour, defaultMinute
	}
	// Tolerate a seconds component ("02:00:00").
	if i := strings.IndexByte(m, ':'); i >= 0 {
		m = m[:i]
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return defaultHour, defaultMinute
	}
	return hour, minute
}

// NextRun returns the next run time after now, in now's location.
//
// Daily schedules always advance exactly one day. Weekly schedules advance
// day by day from tomorrow until DayOfWeek. Monthly schedules move to
// DayOfMonth of the next calendar month, clamped to that month's last day.
// A weekly or monthly cadence without a usable day, or an unknown type,
// runs daily.
func NextRun(now time.Time, c Cadence) time.Time {
	hour, minute := ParseTimeOfDay(c.TimeOfDay)
	loc := now.Location()
	y, mo, d := now.Date()

	tomorrow := time.Date(y, mo, d+1, hour, minute, 0, 0, loc)

	switch ParseFreq(c.Type) {
	case Weekly:
		if c.DayOfWeek == nil || *c.DayOfWeek < 0 || *c.DayOfWeek > 6 {
			return tomorrow
		}
		want := time.Weekday(*c.DayOfWeek)
		next := tomorrow
		for next.Weekday() != want {
			next = time.Date(next.Year(), next.Month(), next.Day()+1, hour, minute, 0, 0, loc)
		}
		return next
	case Monthly:
		if c.DayOfMonth == nil || *c.DayOfMonth < 1 || *c.DayOfMonth > 31 {
			return tomorrow
		}
		day := min(*c.DayOfMonth, daysIn(y, mo+1, loc))
		return time.Date(y, mo+1, day, hour, minute, 0, 0, loc)
	default:
		return tomorrow
	}
}

// daysIn returns the number of days in month m of year y. m may overflow
// into the following year.
func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

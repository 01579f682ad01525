package timeparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Recurrence is a parsed repeating schedule: a five-field cron rule
// (minute hour day-of-month month day-of-week, Sunday = 0) and the first
// fire time in UTC.
type Recurrence struct {
	Cron  string
	First time.Time
}

type recurrenceKind int

const (
	recurDaily recurrenceKind = iota + 1
	recurWeekly
	recurMonthly
)

type recurrenceMatch struct {
	kind     recurrenceKind
	weekday  time.Weekday
	monthDay int
	hour     int
	minute   int
}

const clockPart = `(\d{1,2}):(\d{2})\s*([ap]m)?\b`

var (
	dailyRe   = regexp.MustCompile(`(?i)every\s+day\s+at\s+` + clockPart)
	weeklyRe  = regexp.MustCompile(`(?i)every\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s+at\s+` + clockPart)
	monthlyRe = regexp.MustCompile(`(?i)every\s+(\d{1,2})(?:st|nd|rd|th)?\s+of\s+(?:each|every)\s+month\s+at\s+` + clockPart)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func findRecurrence(text string) (recurrenceMatch, bool) {
	if m := dailyRe.FindStringSubmatch(text); m != nil {
		return recurrenceMatch{kind: recurDaily, hour: to24h(atoi(m[1]), m[3]), minute: atoi(m[2])}, true
	}
	if m := weeklyRe.FindStringSubmatch(text); m != nil {
		return recurrenceMatch{
			kind:    recurWeekly,
			weekday: weekdays[strings.ToLower(m[1])],
			hour:    to24h(atoi(m[2]), m[4]),
			minute:  atoi(m[3]),
		}, true
	}
	if m := monthlyRe.FindStringSubmatch(text); m != nil {
		return recurrenceMatch{
			kind:     recurMonthly,
			monthDay: atoi(m[1]),
			hour:     to24h(atoi(m[2]), m[4]),
			minute:   atoi(m[3]),
		}, true
	}
	return recurrenceMatch{}, false
}

// ParseRecurrence resolves a repeating schedule phrase.
func ParseRecurrence(text string, now time.Time) (Recurrence, error) {
	m, ok := findRecurrence(text)
	if !ok {
		return Recurrence{}, &Error{Kind: ErrUnparsableRecurrence, Hint: hintRecurrence}
	}
	if !validClock(m.hour, m.minute) {
		return Recurrence{}, &Error{Kind: ErrInvalidDate, Hint: hintClock}
	}

	y, mo, d := now.Date()
	loc := now.Location()

	switch m.kind {
	case recurDaily:
		return Recurrence{
			Cron:  fmt.Sprintf("%d %d * * *", m.minute, m.hour),
			First: nextClock(now, m.hour, m.minute).UTC(),
		}, nil

	case recurWeekly:
		days := (int(m.weekday) - int(now.Weekday()) + 7) % 7
		first := time.Date(y, mo, d+days, m.hour, m.minute, 0, 0, loc)
		if days == 0 && !first.After(now) {
			first = first.AddDate(0, 0, 7)
		}
		return Recurrence{
			Cron:  fmt.Sprintf("%d %d * * %d", m.minute, m.hour, int(m.weekday)),
			First: first.UTC(),
		}, nil

	default:
		if m.monthDay < 1 || m.monthDay > 31 {
			return Recurrence{}, &Error{Kind: ErrInvalidDate, Hint: hintRecurrence}
		}
		// the first occurrence is clamped so it exists in every month
		day := min(m.monthDay, 28)
		first := time.Date(y, mo, day, m.hour, m.minute, 0, 0, loc)
		if first.Before(now) {
			first = time.Date(y, mo+1, day, m.hour, m.minute, 0, 0, loc)
		}
		return Recurrence{
			Cron:  fmt.Sprintf("%d %d %d * *", m.minute, m.hour, m.monthDay),
			First: first.UTC(),
		}, nil
	}
}

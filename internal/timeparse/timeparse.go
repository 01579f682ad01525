// Package timeparse turns free-form reminder phrases into concrete fire
// times and cron rules. The accepted vocabulary is a fixed set of patterns
// tried in priority order; the first pattern that matches wins.
package timeparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnparsableTime       = errors.New("unparsable time")
	ErrUnparsableRecurrence = errors.New("unparsable recurrence")
	ErrInvalidDate          = errors.New("invalid date or time")
)

// Error carries a user-facing hint alongside the error kind.
type Error struct {
	Kind error
	Hint string
}

func (e *Error) Error() string { return e.Hint }

func (e *Error) Unwrap() error { return e.Kind }

const (
	hintUnparsable = "I couldn't understand the time format. Please use a specific date/time " +
		"(e.g., 'DD/MM/YYYY at HH:MM') or a relative time (e.g., 'in 30 minutes')."
	hintDate12h    = "Invalid date or time format. Please use DD/MM/YYYY at HH:MM AM/PM format."
	hintDate24h    = "Invalid date or time format. Please use DD/MM/YYYY at HH:MM format."
	hintClock      = "Invalid time. Please use HH:MM with hours 0-23 (or 1-12 with AM/PM) and minutes 0-59."
	hintRecurrence = "I couldn't understand the recurrence pattern. Please use a format like " +
		"'every day at HH:MM', 'every Monday at HH:MM', or 'every 15th of each month at HH:MM'."
)

// Kind enumerates the one-shot forms in the order they are tried.
type Kind int

const (
	KindDate12h Kind = iota + 1
	KindDate24h
	KindClock12h
	KindClock24h
	KindRelative
	KindTomorrow
	KindToday
	KindNextWeek
	KindNextMonth
)

func (k Kind) String() string {
	switch k {
	case KindDate12h:
		return "date_12h"
	case KindDate24h:
		return "date_24h"
	case KindClock12h:
		return "clock_12h"
	case KindClock24h:
		return "clock_24h"
	case KindRelative:
		return "relative"
	case KindTomorrow:
		return "tomorrow"
	case KindToday:
		return "today"
	case KindNextWeek:
		return "next_week"
	case KindNextMonth:
		return "next_month"
	}
	return "unknown"
}

// Match is the result of matching one pattern. Each kind carries its own
// typed captures.
type Match interface {
	Kind() Kind
	resolve(now time.Time) (time.Time, error)
}

type dateTimeMatch struct {
	kind   Kind
	day    int
	month  int
	year   int
	hour   int
	minute int
	hint   string
}

type clockMatch struct {
	kind   Kind
	hour   int
	minute int
}

type relativeMatch struct {
	amount int
	unit   time.Duration
	days   int
}

type anchorMatch struct {
	kind Kind
}

func (m dateTimeMatch) Kind() Kind { return m.kind }
func (m clockMatch) Kind() Kind    { return m.kind }
func (m relativeMatch) Kind() Kind { return KindRelative }
func (m anchorMatch) Kind() Kind   { return m.kind }

func (m dateTimeMatch) resolve(now time.Time) (time.Time, error) {
	if !validDate(m.year, m.month, m.day) || !validClock(m.hour, m.minute) {
		return time.Time{}, &Error{Kind: ErrInvalidDate, Hint: m.hint}
	}
	return time.Date(m.year, time.Month(m.month), m.day, m.hour, m.minute, 0, 0, now.Location()).UTC(), nil
}

func (m clockMatch) resolve(now time.Time) (time.Time, error) {
	if !validClock(m.hour, m.minute) {
		return time.Time{}, &Error{Kind: ErrInvalidDate, Hint: hintClock}
	}
	return nextClock(now, m.hour, m.minute).UTC(), nil
}

func (m relativeMatch) resolve(now time.Time) (time.Time, error) {
	if m.days > 0 {
		return now.AddDate(0, 0, m.amount*m.days).UTC(), nil
	}
	return now.Add(time.Duration(m.amount) * m.unit).UTC(), nil
}

func (m anchorMatch) resolve(now time.Time) (time.Time, error) {
	y, mo, d := now.Date()
	loc := now.Location()
	switch m.kind {
	case KindTomorrow:
		return time.Date(y, mo, d+1, 9, 0, 0, 0, loc).UTC(), nil
	case KindToday:
		return now.Add(time.Hour).UTC(), nil
	case KindNextWeek:
		days := (8 - int(now.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(y, mo, d+days, 9, 0, 0, 0, loc).UTC(), nil
	case KindNextMonth:
		return time.Date(y, mo+1, 1, 9, 0, 0, 0, loc).UTC(), nil
	}
	return time.Time{}, &Error{Kind: ErrUnparsableTime, Hint: hintUnparsable}
}

type pattern struct {
	kind  Kind
	re    *regexp.Regexp
	build func(m []string) Match
}

const datePart = `(\d{1,2})[./-](\d{1,2})[./-](\d{4}|\d{2})`

var patterns = []pattern{
	{
		kind: KindDate12h,
		re:   regexp.MustCompile(`(?i)` + datePart + `(?:\s+at)?\s+(\d{1,2}):(\d{2})\s*([ap]m)\b`),
		build: func(m []string) Match {
			return dateTimeMatch{
				kind: KindDate12h, day: atoi(m[1]), month: atoi(m[2]), year: fullYear(m[3]),
				hour: to24h(atoi(m[4]), m[6]), minute: atoi(m[5]), hint: hintDate12h,
			}
		},
	},
	{
		kind: KindDate24h,
		re:   regexp.MustCompile(`(?i)` + datePart + `(?:\s+at)?\s+(\d{1,2}):(\d{2})`),
		build: func(m []string) Match {
			return dateTimeMatch{
				kind: KindDate24h, day: atoi(m[1]), month: atoi(m[2]), year: fullYear(m[3]),
				hour: atoi(m[4]), minute: atoi(m[5]), hint: hintDate24h,
			}
		},
	},
	{
		kind: KindClock12h,
		re:   regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([ap]m)\b`),
		build: func(m []string) Match {
			return clockMatch{kind: KindClock12h, hour: to24h(atoi(m[1]), m[3]), minute: atoi(m[2])}
		},
	},
	{
		kind: KindClock24h,
		re:   regexp.MustCompile(`(\d{1,2}):(\d{2})`),
		build: func(m []string) Match {
			return clockMatch{kind: KindClock24h, hour: atoi(m[1]), minute: atoi(m[2])}
		},
	},
	{
		kind: KindRelative,
		re:   regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(second|minute|hour|day|week)s?\b`),
		build: func(m []string) Match {
			n := atoi(m[1])
			switch strings.ToLower(m[2]) {
			case "second":
				return relativeMatch{amount: n, unit: time.Second}
			case "minute":
				return relativeMatch{amount: n, unit: time.Minute}
			case "hour":
				return relativeMatch{amount: n, unit: time.Hour}
			case "day":
				return relativeMatch{amount: n, days: 1}
			default:
				return relativeMatch{amount: n, days: 7}
			}
		},
	},
	{kind: KindTomorrow, re: regexp.MustCompile(`(?i)\btomorrow\b`), build: anchor(KindTomorrow)},
	{kind: KindToday, re: regexp.MustCompile(`(?i)\btoday\b`), build: anchor(KindToday)},
	{kind: KindNextWeek, re: regexp.MustCompile(`(?i)\bnext\s+week\b`), build: anchor(KindNextWeek)},
	{kind: KindNextMonth, re: regexp.MustCompile(`(?i)\bnext\s+month\b`), build: anchor(KindNextMonth)},
}

func anchor(k Kind) func([]string) Match {
	return func([]string) Match { return anchorMatch{kind: k} }
}

// Find returns the highest-priority match in text, or nil.
func Find(text string) Match {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return p.build(m)
		}
	}
	return nil
}

// ParseTime resolves a one-shot reminder time. Wall-clock values are read in
// now's location; the result is always UTC.
func ParseTime(text string, now time.Time) (time.Time, error) {
	m := Find(text)
	if m == nil {
		return time.Time{}, &Error{Kind: ErrUnparsableTime, Hint: hintUnparsable}
	}
	return m.resolve(now)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func fullYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

func to24h(hour int, meridiem string) int {
	switch strings.ToLower(meridiem) {
	case "am":
		if hour == 12 {
			return 0
		}
	case "pm":
		if hour < 12 {
			return hour + 12
		}
	}
	return hour
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= daysIn(year, time.Month(month))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nextClock returns today at hour:minute, or tomorrow if that has passed.
func nextClock(now time.Time, hour, minute int) time.Time {
	y, mo, d := now.Date()
	t := time.Date(y, mo, d, hour, minute, 0, 0, now.Location())
	if t.Before(now) {
		t = time.Date(y, mo, d+1, hour, minute, 0, 0, now.Location())
	}
	return t
}

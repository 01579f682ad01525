package rrule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCron = errors.New("invalid cron expression")

// Cron is a parsed five-field rule: minute hour day-of-month month
// day-of-week. A nil field means "*". Day-of-week uses 0 for Sunday.
type Cron struct {
	expr     string
	Minutes  []int
	Hours    []int
	MonthDay []int
	Months   []int
	Weekdays []int
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// ParseCron parses a five-field cron expression. Rules that restrict both
// day-of-month and day-of-week are rejected, as are rules that can never fire.
func ParseCron(expr string) (*Cron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: want 5 fields, got %d in %q", ErrInvalidCron, len(fields), expr)
	}

	var parsed [5][]int
	for i, f := range fields {
		values, err := parseField(f, cronFields[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		parsed[i] = values
	}

	c := &Cron{
		expr:     strings.Join(fields, " "),
		Minutes:  parsed[0],
		Hours:    parsed[1],
		MonthDay: parsed[2],
		Months:   parsed[3],
		Weekdays: normalizeWeekdays(parsed[4]),
	}

	if c.MonthDay != nil && c.Weekdays != nil {
		return nil, fmt.Errorf("%w: day-of-month and day-of-week cannot both be set", ErrInvalidCron)
	}
	if !c.possible() {
		return nil, fmt.Errorf("%w: %q never fires", ErrInvalidCron, expr)
	}
	return c, nil
}

func (c *Cron) String() string { return c.expr }

func parseField(field string, spec cronField) ([]int, error) {
	if field == "*" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var values []int
	for _, part := range strings.Split(field, ",") {
		lo, hi, step := spec.min, spec.max, 1

		rangePart := part
		if idx := strings.Index(part, "/"); idx >= 0 {
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s < 1 {
				return nil, fmt.Errorf("bad step in %s field %q", spec.name, part)
			}
			step = s
			rangePart = part[:idx]
		}

		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			a, errA := strconv.Atoi(bounds[0])
			b, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil || a > b {
				return nil, fmt.Errorf("bad range in %s field %q", spec.name, part)
			}
			lo, hi = a, b
		default:
			n, err := strconv.Atoi(rangePart)
			if err != nil {
				return nil, fmt.Errorf("bad value in %s field %q", spec.name, part)
			}
			lo = n
			if step == 1 {
				hi = n
			}
		}

		if lo < spec.min || hi > spec.max {
			return nil, fmt.Errorf("%s field %q out of range %d-%d", spec.name, part, spec.min, spec.max)
		}
		for v := lo; v <= hi; v += step {
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	return values, nil
}

func normalizeWeekdays(days []int) []int {
	if days == nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, d := range days {
		d %= 7
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// possible reports whether some month in the rule has one of its days.
func (c *Cron) possible() bool {
	if c.MonthDay == nil {
		return true
	}
	months := c.Months
	if months == nil {
		months = []int{1}
	}
	for _, m := range months {
		// leap-year lengths so Feb 29 stays reachable
		limit := time.Date(2024, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		for _, d := range c.MonthDay {
			if d <= limit {
				return true
			}
		}
	}
	return false
}

// Builder maps the rule onto an RRULE. The frequency is the coarsest one that
// still visits every candidate instant.
func (c *Cron) Builder() *RRuleBuilder {
	b := &RRuleBuilder{
		Interval:   1,
		ByMinute:   c.Minutes,
		ByHour:     c.Hours,
		BySecond:   []int{0},
		ByMonthDay: c.MonthDay,
		ByMonth:    c.Months,
	}
	for _, d := range c.Weekdays {
		b.ByWeekday = append(b.ByWeekday, cronWeekdays[d])
	}

	switch {
	case c.Minutes == nil:
		b.Freq = FreqMinutely
	case c.Hours == nil:
		b.Freq = FreqHourly
	case c.Months != nil:
		b.Freq = FreqDaily
	case c.MonthDay != nil:
		b.Freq = FreqMonthly
	case c.Weekdays != nil:
		b.Freq = FreqWeekly
	default:
		b.Freq = FreqDaily
	}
	return b
}

// RRule returns the RRULE text equivalent of the cron rule.
func (c *Cron) RRule() string {
	return c.Builder().String()
}

// Next returns the first fire time strictly after the given time, evaluated
// as wall-clock time in loc.
func (c *Cron) Next(after time.Time, loc *time.Location) (time.Time, error) {
	local := after.In(loc)
	y, m, d := local.Date()
	dtstart := time.Date(y, m, d, 0, 0, 0, 0, loc)

	rule, err := c.Builder().Build(dtstart)
	if err != nil {
		return time.Time{}, err
	}
	next := rule.After(local, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no occurrence after %s", ErrInvalidCron, after)
	}
	return next, nil
}

// NextCron parses expr and returns its next fire time after the given time.
func NextCron(expr string, after time.Time, loc *time.Location) (time.Time, error) {
	c, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return c.Next(after, loc)
}

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// HumanReadable describes the rules the reminder parser produces in words and
// falls back to the raw expression for anything else.
func HumanReadable(expr string) string {
	c, err := ParseCron(expr)
	if err != nil || len(c.Minutes) != 1 || len(c.Hours) != 1 || c.Months != nil {
		return expr
	}
	clock := fmt.Sprintf("%02d:%02d", c.Hours[0], c.Minutes[0])

	switch {
	case c.MonthDay == nil && c.Weekdays == nil:
		return "every day at " + clock
	case len(c.Weekdays) == 1:
		return fmt.Sprintf("every %s at %s", weekdayNames[c.Weekdays[0]], clock)
	case len(c.MonthDay) == 1:
		return fmt.Sprintf("on day %d of every month at %s", c.MonthDay[0], clock)
	}
	return expr
}

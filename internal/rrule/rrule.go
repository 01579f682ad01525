package rrule

import (
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	FreqMinutely = rrule.MINUTELY
	FreqHourly   = rrule.HOURLY
	FreqDaily    = rrule.DAILY
	FreqWeekly   = rrule.WEEKLY
	FreqMonthly  = rrule.MONTHLY
)

// Weekdays indexed the cron way, Sunday first
var cronWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// RRuleBuilder holds the RFC 5545 parts a cron rule maps onto. Empty slices
// leave the corresponding BY part unset.
type RRuleBuilder struct {
	Freq       rrule.Frequency
	Interval   int
	ByMonth    []int
	ByMonthDay []int
	ByWeekday  []rrule.Weekday
	ByHour     []int
	ByMinute   []int
	BySecond   []int
}

// Build returns the recurrence anchored at dtstart. Occurrences are computed
// in dtstart's location.
func (b *RRuleBuilder) Build(dtstart time.Time) (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:       b.Freq,
		Interval:   b.Interval,
		Dtstart:    dtstart,
		Bymonth:    b.ByMonth,
		Bymonthday: b.ByMonthDay,
		Byweekday:  b.ByWeekday,
		Byhour:     b.ByHour,
		Byminute:   b.ByMinute,
		Bysecond:   b.BySecond,
	})
}

// String renders the rule without DTSTART, e.g.
// FREQ=WEEKLY;BYDAY=MO;BYHOUR=9;BYMINUTE=30;BYSECOND=0.
func (b *RRuleBuilder) String() string {
	parts := []string{"FREQ=" + b.Freq.String()}
	if b.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(b.Interval))
	}

	add := func(key string, values []int) {
		if len(values) > 0 {
			parts = append(parts, key+"="+joinInts(values))
		}
	}
	add("BYMONTH", b.ByMonth)
	add("BYMONTHDAY", b.ByMonthDay)
	if len(b.ByWeekday) > 0 {
		days := make([]string, len(b.ByWeekday))
		for i, d := range b.ByWeekday {
			days[i] = d.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	add("BYHOUR", b.ByHour)
	add("BYMINUTE", b.ByMinute)
	add("BYSECOND", b.BySecond)

	return strings.Join(parts, ";")
}

func joinInts(values []int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

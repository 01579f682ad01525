package rrule

import (
	"errors"
	"testing"
	"time"
)

func TestParseCronFields(t *testing.T) {
	c, err := ParseCron("*/15 9-11 * * 1,3,7")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}
	if want := []int{0, 15, 30, 45}; !equalInts(c.Minutes, want) {
		t.Errorf("minutes = %v, want %v", c.Minutes, want)
	}
	if want := []int{9, 10, 11}; !equalInts(c.Hours, want) {
		t.Errorf("hours = %v, want %v", c.Hours, want)
	}
	if c.MonthDay != nil || c.Months != nil {
		t.Errorf("expected unrestricted day-of-month and month")
	}
	// 7 is another spelling of Sunday
	if want := []int{1, 3, 0}; !equalInts(c.Weekdays, want) {
		t.Errorf("weekdays = %v, want %v", c.Weekdays, want)
	}
}

func TestParseCronErrors(t *testing.T) {
	tests := []string{
		"",
		"0 8 * *",
		"60 8 * * *",
		"0 24 * * *",
		"0 8 0 * *",
		"0 8 * 13 *",
		"0 8 * * 8",
		"0 8 5-1 * *",
		"0 8 */0 * *",
		"0 8 x * *",
		"0 8 15 * 1",
		"0 8 31 2 *",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			if _, err := ParseCron(expr); !errors.Is(err, ErrInvalidCron) {
				t.Errorf("ParseCron(%q) error = %v, want ErrInvalidCron", expr, err)
			}
		})
	}
}

func TestCronRRule(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"0 8 * * *", "FREQ=DAILY;BYHOUR=8;BYMINUTE=0;BYSECOND=0"},
		{"30 9 * * 1", "FREQ=WEEKLY;BYDAY=MO;BYHOUR=9;BYMINUTE=30;BYSECOND=0"},
		{"0 7 * * 0", "FREQ=WEEKLY;BYDAY=SU;BYHOUR=7;BYMINUTE=0;BYSECOND=0"},
		{"30 9 15 * *", "FREQ=MONTHLY;BYMONTHDAY=15;BYHOUR=9;BYMINUTE=30;BYSECOND=0"},
		{"0 12 1 6 *", "FREQ=DAILY;BYMONTH=6;BYMONTHDAY=1;BYHOUR=12;BYMINUTE=0;BYSECOND=0"},
		{"5 * * * *", "FREQ=HOURLY;BYMINUTE=5;BYSECOND=0"},
		{"* 8 * * *", "FREQ=MINUTELY;BYHOUR=8;BYSECOND=0"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron: %v", err)
			}
			if got := c.RRule(); got != tt.want {
				t.Errorf("RRule() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextCron(t *testing.T) {
	// Wednesday
	after := time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"daily later today", "0 10 * * *", time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)},
		{"daily passed", "0 9 * * *", time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC)},
		{"exactly now is skipped", "30 9 * * *", time.Date(2025, 3, 13, 9, 30, 0, 0, time.UTC)},
		{"next monday", "0 8 * * 1", time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC)},
		{"next sunday", "0 8 * * 0", time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)},
		{"monthly this month", "30 9 15 * *", time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)},
		{"monthly skips short months", "0 8 31 * *", time.Date(2025, 3, 31, 8, 0, 0, 0, time.UTC)},
		{"hourly", "45 * * * *", time.Date(2025, 3, 12, 9, 45, 0, 0, time.UTC)},
		{"every minute", "* * * * *", time.Date(2025, 3, 12, 9, 31, 0, 0, time.UTC)},
		{"yearly", "0 12 1 6 *", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextCron(tt.expr, after, time.UTC)
			if err != nil {
				t.Fatalf("NextCron: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextCron(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestNextCronAfterMonthEnd(t *testing.T) {
	after := time.Date(2025, 3, 31, 8, 0, 0, 0, time.UTC)
	got, err := NextCron("0 8 31 * *", after, time.UTC)
	if err != nil {
		t.Fatalf("NextCron: %v", err)
	}
	if want := time.Date(2025, 5, 31, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextCronInLocation(t *testing.T) {
	taipei := time.FixedZone("UTC+8", 8*60*60)
	// 09:30 in Taipei
	after := time.Date(2025, 3, 12, 1, 30, 0, 0, time.UTC)

	got, err := NextCron("0 8 * * *", after, taipei)
	if err != nil {
		t.Fatalf("NextCron: %v", err)
	}
	if want := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}
}

func TestHumanReadable(t *testing.T) {
	tests := []struct {
		expr, want string
	}{
		{"0 8 * * *", "every day at 08:00"},
		{"15 21 * * 0", "every Sunday at 21:15"},
		{"30 9 15 * *", "on day 15 of every month at 09:30"},
		{"*/5 * * * *", "*/5 * * * *"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := HumanReadable(tt.expr); got != tt.want {
			t.Errorf("HumanReadable(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestRRuleBuilderBuild(t *testing.T) {
	b := &RRuleBuilder{Freq: FreqDaily, Interval: 1, ByHour: []int{8}, ByMinute: []int{0}, BySecond: []int{0}}
	rule, err := b.Build(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	next := rule.After(time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC), false)
	if !next.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("next = %v", next)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

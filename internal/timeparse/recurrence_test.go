package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestParseRecurrence(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantCron  string
		wantFirst time.Time
	}{
		{"weekly upcoming monday", "remind me to run every Monday at 08:00", "0 8 * * 1", utc(2025, 3, 17, 8, 0)},
		{"weekly same day passed", "every Wednesday at 08:00", "0 8 * * 3", utc(2025, 3, 19, 8, 0)},
		{"weekly same day upcoming", "every wednesday at 10:00 AM", "0 10 * * 3", utc(2025, 3, 12, 10, 0)},
		{"weekly sunday is zero", "every Sunday at 9:15 PM", "15 21 * * 0", utc(2025, 3, 16, 21, 15)},
		{"daily passed", "take pills every day at 9:00", "0 9 * * *", utc(2025, 3, 13, 9, 0)},
		{"daily upcoming", "every day at 10:00", "0 10 * * *", utc(2025, 3, 12, 10, 0)},
		{"daily 12h", "every day at 12:00 am", "0 0 * * *", utc(2025, 3, 13, 0, 0)},
		{"monthly upcoming", "pay rent every 15th of each month at 9:30 AM", "30 9 15 * *", utc(2025, 3, 15, 9, 30)},
		{"monthly clamps first occurrence", "every 31st of every month at 08:00", "0 8 31 * *", utc(2025, 3, 28, 8, 0)},
		{"monthly passed", "every 5 of each month at 08:00", "0 8 5 * *", utc(2025, 4, 5, 8, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecurrence(tt.text, wednesday)
			if err != nil {
				t.Fatalf("ParseRecurrence(%q): %v", tt.text, err)
			}
			if got.Cron != tt.wantCron {
				t.Errorf("cron = %q, want %q", got.Cron, tt.wantCron)
			}
			if !got.First.Equal(tt.wantFirst) {
				t.Errorf("first = %v, want %v", got.First, tt.wantFirst)
			}
		})
	}
}

func TestParseRecurrenceErrors(t *testing.T) {
	tests := []struct {
		text string
		kind error
	}{
		{"every now and then", ErrUnparsableRecurrence},
		{"remind me tomorrow at 5:00 PM", ErrUnparsableRecurrence},
		{"every day at 24:00", ErrInvalidDate},
		{"every 32nd of each month at 08:00", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := ParseRecurrence(tt.text, wednesday)
			if !errors.Is(err, tt.kind) {
				t.Errorf("ParseRecurrence(%q) error = %v, want %v", tt.text, err, tt.kind)
			}
		})
	}
}

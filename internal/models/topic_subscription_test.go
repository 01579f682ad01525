package models

import (
	"testing"
	"time"
)

func TestFrequency(t *testing.T) {
	tests := []struct {
		in     string
		period time.Duration
		label  string
	}{
		{"hourly", time.Hour, "Hourly"},
		{"daily", 24 * time.Hour, "Daily"},
		{"weekly", 7 * 24 * time.Hour, "Weekly"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParseFrequency(tt.in)
			if err != nil {
				t.Fatalf("ParseFrequency(%q) error = %v", tt.in, err)
			}
			if f.Period() != tt.period {
				t.Errorf("Period() = %v, want %v", f.Period(), tt.period)
			}
			if f.Label() != tt.label {
				t.Errorf("Label() = %q, want %q", f.Label(), tt.label)
			}
		})
	}

	if _, err := ParseFrequency("monthly"); err == nil {
		t.Error("ParseFrequency(monthly) should fail")
	}
}

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{FirstName: "Ada", UserName: "ada"}, "Ada"},
		{User{UserName: "ada"}, "ada"},
		{User{}, "there"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

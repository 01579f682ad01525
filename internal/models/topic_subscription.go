package models

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return f, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// Period is the time between two updates.
func (f Frequency) Period() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func (f Frequency) Label() string {
	switch f {
	case FrequencyHourly:
		return "Hourly"
	case FrequencyWeekly:
		return "Weekly"
	default:
		return "Daily"
	}
}

type TopicSubscription struct {
	SubscriptionID int        `json:"subscription_id"`
	UserID         int64      `json:"user_id"`
	Topic          string     `json:"topic"`
	Frequency      Frequency  `json:"frequency"`
	LastRun        *time.Time `json:"last_run"`
	NextRun        time.Time  `json:"next_run"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

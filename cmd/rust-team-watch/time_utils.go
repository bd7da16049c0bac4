package main

import (
	"fmt"
	"time"
)

type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// formatMinutes renders a duration in seconds as "1h 5m" or "42m".
func formatMinutes(seconds int64) string {
	minutes := seconds / 60
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatStamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04 UTC")
}

// tickSeconds converts the poll interval into the unit idle counters are scaled by.
func tickSeconds(interval time.Duration) int64 {
	s := int64(interval / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

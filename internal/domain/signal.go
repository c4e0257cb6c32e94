package domain

import (
	"fmt"
	"time"
)

type SourceKind string

const (
	SourceManual   SourceKind = "manual"
	SourceFeed     SourceKind = "feed"
	SourceList     SourceKind = "list"
	SourceStrategy SourceKind = "strategy"
)

// Signal is a candidate trade produced by a SignalSource.
type Signal struct {
	Asset       string     `json:"asset"`
	Direction   Direction  `json:"direction"`
	Duration    int        `json:"duration"`
	ScheduledAt time.Time  `json:"scheduled_at,omitempty"`
	Source      SourceKind `json:"source"`
	Note        string     `json:"note,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

func (s Signal) String() string {
	if s.ScheduledAt.IsZero() {
		return fmt.Sprintf("%s %s %ds", s.Asset, s.Direction, s.Duration)
	}
	return fmt.Sprintf("%s %s %ds @%s", s.Asset, s.Direction, s.Duration, s.ScheduledAt.Format("15:04"))
}

// ValidDurations are the expiries accepted by the broker, in seconds.
var ValidDurations = []int{5, 10, 15, 30, 60, 120, 180, 240, 300, 600, 900, 1800, 3600}

// NearestDuration snaps d to the closest valid expiry.
func NearestDuration(d int) int {
	best := ValidDurations[0]
	for _, v := range ValidDurations {
		if abs(v-d) < abs(best-d) {
			best = v
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

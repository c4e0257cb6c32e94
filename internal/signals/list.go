package signals

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// ListEntry is one line of a signal list file. The file may be YAML or JSON.
type ListEntry struct {
	Asset     string `yaml:"asset" json:"asset"`
	Direction string `yaml:"direction" json:"direction"`
	Time      string `yaml:"time,omitempty" json:"time,omitempty"`
	Duration  int    `yaml:"duration,omitempty" json:"duration,omitempty"`
	Note      string `yaml:"note,omitempty" json:"note,omitempty"`
}

// ListSource replays a pre-built list of signals in time order.
// Entries without a time run last, immediately.
type ListSource struct {
	mu      sync.Mutex
	signals []domain.Signal
	pos     int
}

// LoadListFile reads a signal list from path. Times are HH:MM on the day of now.
func LoadListFile(path string, now time.Time, defaultDuration int) (*ListSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal list: %w", err)
	}
	var entries []ListEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse signal list %s: %w", path, err)
	}
	return NewListSource(entries, now, defaultDuration)
}

// NewListSource validates entries and orders them by scheduled time.
func NewListSource(entries []ListEntry, now time.Time, defaultDuration int) (*ListSource, error) {
	out := make([]domain.Signal, 0, len(entries))
	for i, e := range entries {
		dir, ok := domain.ParseDirection(strings.TrimSpace(e.Direction))
		if !ok {
			return nil, fmt.Errorf("entry %d: invalid direction %q", i+1, e.Direction)
		}
		if strings.TrimSpace(e.Asset) == "" {
			return nil, fmt.Errorf("entry %d: asset is required", i+1)
		}
		sig := domain.Signal{
			Asset:     strings.TrimSpace(e.Asset),
			Direction: dir,
			Duration:  defaultDuration,
			Source:    domain.SourceList,
			Note:      e.Note,
		}
		if e.Duration > 0 {
			sig.Duration = domain.NearestDuration(e.Duration)
		}
		if e.Time != "" {
			at, err := parseListTime(e.Time, now)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i+1, err)
			}
			sig.ScheduledAt = at
		}
		out = append(out, sig)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledAt, out[j].ScheduledAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		}
		return a.Before(b)
	})
	return &ListSource{signals: out}, nil
}

func parseListTime(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location()), nil
}

func (s *ListSource) Kind() domain.SourceKind { return domain.SourceList }

// Next returns the next entry, or ErrSourceExhausted after the last one.
func (s *ListSource) Next(ctx context.Context) (*domain.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.signals) {
		return nil, domain.ErrSourceExhausted
	}
	sig := s.signals[s.pos]
	s.pos++
	return &sig, nil
}

// Remaining reports how many entries have not been handed out.
func (s *ListSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signals) - s.pos
}

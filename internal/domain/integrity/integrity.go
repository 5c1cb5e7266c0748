// Package integrity holds the snapshot and drift types of the filesystem
// integrity detector.
package integrity

import (
	"errors"
	"sort"
	"time"
)

// ErrNoBaseline is returned when drift detection runs before any baseline
// has been built or loaded.
var ErrNoBaseline = errors.New("no integrity baseline")

// Snapshot maps a normalized absolute file path to its content digest.
type Snapshot map[string]string

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// State is the lifecycle state of the detector.
type State string

// Detector states: NoBaseline -> BaselineBuilding -> Idle <-> Scanning.
const (
	StateNoBaseline       State = "no_baseline"
	StateBaselineBuilding State = "baseline_building"
	StateIdle             State = "idle"
	StateScanning         State = "scanning"
)

// Changes is the result of comparing a current snapshot to a baseline.
type Changes struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Total is the number of changed paths.
func (c Changes) Total() int { return len(c.Added) + len(c.Modified) + len(c.Removed) }

// Empty reports whether nothing drifted.
func (c Changes) Empty() bool { return c.Total() == 0 }

// Diff compares current against baseline. Paths in each list are sorted.
func Diff(baseline, current Snapshot) Changes {
	var c Changes
	for path, old := range baseline {
		digest, ok := current[path]
		switch {
		case !ok:
			c.Removed = append(c.Removed, path)
		case digest != old:
			c.Modified = append(c.Modified, path)
		}
	}
	for path := range current {
		if _, ok := baseline[path]; !ok {
			c.Added = append(c.Added, path)
		}
	}

	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Removed)
	return c
}

// Event reports drift found by one scan. It is only produced when at least
// one path changed.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Added        []string  `json:"added"`
	Modified     []string  `json:"modified"`
	Removed      []string  `json:"removed"`
	TotalChanges int       `json:"total_changes"`
}

// NewEvent builds an event from non-empty changes. Nil slices are replaced by
// empty ones so the wire form always carries all three lists.
func NewEvent(id string, at time.Time, c Changes) *Event {
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return &Event{
		ID:           id,
		Timestamp:    at,
		Added:        nonNil(c.Added),
		Modified:     nonNil(c.Modified),
		Removed:      nonNil(c.Removed),
		TotalChanges: c.Total(),
	}
}

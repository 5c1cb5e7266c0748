package threat

import (
	"errors"
	"time"
)

// Common errors shared by the triage pipeline.
var (
	// ErrMalformedInput marks unparsable addresses or corrupt persisted records.
	// Callers treat it as absence, never as an abort.
	ErrMalformedInput = errors.New("malformed input")
	// ErrTransientIO marks file and network failures that degrade a feature.
	ErrTransientIO = errors.New("transient io failure")
	// ErrConfigurationGap marks a missing credential or directory.
	ErrConfigurationGap = errors.New("configuration gap")
)

// BlockThreshold is the combined score at or above which an address is blocked.
const BlockThreshold = 0.6

// Flow is a single observed source/destination address pair.
type Flow struct {
	Src string
	Dst string
}

// Location is the geolocation of an external address.
type Location struct {
	Country   string  `json:"country"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// UnknownLocation is used whenever the locator has nothing for an address.
var UnknownLocation = Location{Country: "Unknown"}

// Event is the outcome of triaging one flow.
type Event struct {
	ID            string    `json:"id"`
	ObservedAt    time.Time `json:"observed_at"`
	SrcAddress    string    `json:"src_ip"`
	DstAddress    string    `json:"dst_ip"`
	ExternalAddr  string    `json:"external_ip"`
	CombinedScore float64   `json:"score"`
	Reputation    float64   `json:"reputation"`
	Behavior      float64   `json:"behavior"`
	Country       string    `json:"country"`
	Latitude      float64   `json:"lat"`
	Longitude     float64   `json:"lon"`
	Blocked       bool      `json:"blocked"`
}

// Mode is the process-wide state of the behavioral scorer.
type Mode string

// Scorer modes. The only transition is Learning to Monitoring.
const (
	ModeLearning   Mode = "Learning"
	ModeMonitoring Mode = "Monitoring"
)

// String returns the string representation of the mode.
func (m Mode) String() string { return string(m) }

// ModeStatus is what the presentation surface shows for the scorer.
// TimeRemaining is set only in Learning mode, including when it reaches 0.
type ModeStatus struct {
	Mode          Mode `json:"mode"`
	TimeRemaining *int `json:"time_remaining,omitempty"`
}

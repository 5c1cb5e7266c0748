// Package capture turns the host's connection tables into flows for triage.
package capture

import (
	"context"
	"errors"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// ErrUnsupported is returned by sources that cannot run on this platform.
var ErrUnsupported = errors.New("capture source unsupported on this platform")

// Source names accepted by New.
const (
	SourceConntrack = "conntrack"
	SourceSockets   = "sockets"
	SourceNone      = "none"
)

// Source reports the flows currently visible on the host.
type Source interface {
	// Name identifies the source in status output.
	Name() string

	// Snapshot lists the current flows.
	Snapshot(ctx context.Context) ([]threat.Flow, error)
}

// New returns the named source. SourceNone yields a nil Source and no error.
func New(name string) (Source, error) {
	switch name {
	case SourceConntrack:
		return NewConntrackSource(), nil
	case SourceSockets:
		return NewSocketSource(), nil
	case SourceNone, "":
		return nil, nil
	default:
		return nil, errors.New("unknown capture source: " + name)
	}
}

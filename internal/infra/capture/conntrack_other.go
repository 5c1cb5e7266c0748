//go:build !linux

package capture

import (
	"context"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// ConntrackSource is only available on Linux.
type ConntrackSource struct{}

// NewConntrackSource returns a source whose Snapshot always fails.
func NewConntrackSource() *ConntrackSource { return &ConntrackSource{} }

// Name returns "conntrack".
func (s *ConntrackSource) Name() string { return SourceConntrack }

// Snapshot returns ErrUnsupported.
func (s *ConntrackSource) Snapshot(context.Context) ([]threat.Flow, error) {
	return nil, ErrUnsupported
}

package capture

import (
	"context"
	"errors"
	"fmt"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

type connectionLister func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)

// SocketSource reads the OS socket table. It works wherever gopsutil does and
// needs no extra privileges, but only sees connections terminating on this host.
type SocketSource struct {
	list connectionLister
}

// NewSocketSource creates a source over inet sockets.
func NewSocketSource() *SocketSource {
	return &SocketSource{list: psnet.ConnectionsWithContext}
}

// Name returns "sockets".
func (s *SocketSource) Name() string { return SourceSockets }

// Snapshot lists every socket with a remote peer. Listening sockets are skipped.
func (s *SocketSource) Snapshot(ctx context.Context) ([]threat.Flow, error) {
	conns, err := s.list(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("socket table: %w", errors.Join(threat.ErrTransientIO, err))
	}

	flows := make([]threat.Flow, 0, len(conns))
	for _, c := range conns {
		if c.Raddr.IP == "" || c.Laddr.IP == "" || c.Status == "LISTEN" {
			continue
		}
		flows = append(flows, threat.Flow{Src: c.Raddr.IP, Dst: c.Laddr.IP})
	}
	return flows, nil
}

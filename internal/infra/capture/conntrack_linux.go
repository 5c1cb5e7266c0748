//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

type conntrackLister func(table netlink.ConntrackTableType, family netlink.InetFamily) ([]*netlink.ConntrackFlow, error)

// ConntrackSource reads the kernel connection tracking table over netlink.
type ConntrackSource struct {
	list conntrackLister
}

// NewConntrackSource creates a source listing IPv4 and IPv6 conntrack entries.
func NewConntrackSource() *ConntrackSource {
	return &ConntrackSource{list: netlink.ConntrackTableList}
}

// Name returns "conntrack".
func (s *ConntrackSource) Name() string { return SourceConntrack }

// Snapshot lists the forward direction of every tracked connection. It fails
// only when both address families fail.
func (s *ConntrackSource) Snapshot(ctx context.Context) ([]threat.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v4, err4 := s.list(netlink.ConntrackTable, netlink.FAMILY_V4)
	v6, err6 := s.list(netlink.ConntrackTable, netlink.FAMILY_V6)
	if err4 != nil && err6 != nil {
		return nil, fmt.Errorf("conntrack list: %w", errors.Join(threat.ErrTransientIO, err4, err6))
	}

	flows := make([]threat.Flow, 0, len(v4)+len(v6))
	for _, table := range [][]*netlink.ConntrackFlow{v4, v6} {
		for _, f := range table {
			if f == nil || f.Forward.SrcIP == nil || f.Forward.DstIP == nil {
				continue
			}
			flows = append(flows, threat.Flow{
				Src: f.Forward.SrcIP.String(),
				Dst: f.Forward.DstIP.String(),
			})
		}
	}
	return flows, nil
}

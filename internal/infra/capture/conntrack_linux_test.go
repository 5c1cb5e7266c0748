//go:build linux

package capture

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

func ctFlow(src, dst string) *netlink.ConntrackFlow {
	f := &netlink.ConntrackFlow{}
	f.Forward.SrcIP = net.ParseIP(src)
	f.Forward.DstIP = net.ParseIP(dst)
	return f
}

func TestConntrackSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		v4, v6  []*netlink.ConntrackFlow
		err4    error
		err6    error
		want    []threat.Flow
		wantErr bool
	}{
		{
			name: "both families",
			v4:   []*netlink.ConntrackFlow{ctFlow("10.0.0.2", "45.1.1.1"), nil},
			v6:   []*netlink.ConntrackFlow{ctFlow("2001:db8::2", "2606:4700::1")},
			want: []threat.Flow{{Src: "10.0.0.2", Dst: "45.1.1.1"}, {Src: "2001:db8::2", Dst: "2606:4700::1"}},
		},
		{
			name: "v6 unavailable",
			v4:   []*netlink.ConntrackFlow{ctFlow("10.0.0.2", "45.1.1.1")},
			err6: errors.New("protocol not supported"),
			want: []threat.Flow{{Src: "10.0.0.2", Dst: "45.1.1.1"}},
		},
		{
			name:    "both fail",
			err4:    errors.New("operation not permitted"),
			err6:    errors.New("operation not permitted"),
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &ConntrackSource{list: func(_ netlink.ConntrackTableType, family netlink.InetFamily) ([]*netlink.ConntrackFlow, error) {
				if family == netlink.FAMILY_V4 {
					return tc.v4, tc.err4
				}
				return tc.v6, tc.err6
			}}

			flows, err := src.Snapshot(context.Background())
			if tc.wantErr {
				assert.ErrorIs(t, err, threat.ErrTransientIO)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, flows)
		})
	}
}

// Package threat holds the flow, event and address types shared by the
// scorer, the reputation engine, the firewall controller and the triage
// orchestrator.
package threat

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParseAddr parses a textual IPv4 or IPv6 address, unmapping IPv4-in-IPv6
// forms and dropping any zone.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: address %q: %v", ErrMalformedInput, s, err)
	}
	return addr.Unmap().WithZone(""), nil
}

// IsInternalAddr reports whether addr must never be scored, blocked or
// treated as the external side of a flow: private, loopback, link-local,
// multicast link-local and unspecified ranges.
func IsInternalAddr(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsUnspecified()
}

// IsInternal is IsInternalAddr for textual input. Unparsable input counts as
// internal so it is never acted upon.
func IsInternal(s string) bool {
	addr, err := ParseAddr(s)
	if err != nil {
		return true
	}
	return IsInternalAddr(addr)
}

// Canonical returns the canonical text form of an external address.
func Canonical(s string) (string, error) {
	addr, err := ParseAddr(s)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// ExternalSide selects the externally routable side of a flow. It returns
// false for internal-to-internal flows, which are not triaged.
func ExternalSide(f Flow) (string, bool) {
	srcInternal, dstInternal := IsInternal(f.Src), IsInternal(f.Dst)
	switch {
	case srcInternal && dstInternal:
		return "", false
	case srcInternal:
		return f.Dst, true
	default:
		return f.Src, true
	}
}

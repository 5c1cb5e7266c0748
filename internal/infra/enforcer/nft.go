// Package enforcer applies firewall blocks on the host.
package enforcer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ahrav/aura-radar/internal/domain/firewall"
	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// Defaults for the nftables objects the enforcer writes to.
const (
	DefaultTable = "aura_radar"
	DefaultSet   = "blocked"
)

var (
	_ firewall.Enforcer = (*Nft)(nil)
	_ firewall.Enforcer = RecordOnly{}
)

// Runner executes the nft binary with args and returns its combined output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "nft", args...).CombinedOutput()
}

// Option configures an Nft enforcer.
type Option func(*Nft)

// WithRunner replaces the nft invocation.
func WithRunner(r Runner) Option { return func(n *Nft) { n.run = r } }

// WithAvailable overrides platform detection.
func WithAvailable(ok bool) Option { return func(n *Nft) { n.available = ok } }

// Nft adds and removes addresses from nftables sets in the inet family. IPv4
// addresses go to <set>, IPv6 addresses to <set>6. The ruleset that drops
// traffic matching those sets is owned by the host.
type Nft struct {
	table     string
	set       string
	run       Runner
	available bool
}

// NewNft creates an enforcer for table and set. It is available on Linux when
// nft is on PATH.
func NewNft(table, set string, opts ...Option) *Nft {
	if table == "" {
		table = DefaultTable
	}
	if set == "" {
		set = DefaultSet
	}

	n := &Nft{table: table, set: set, run: execRunner}
	if runtime.GOOS == "linux" {
		if _, err := exec.LookPath("nft"); err == nil {
			n.available = true
		}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns "nftables".
func (n *Nft) Name() string { return "nftables" }

// Available reports whether nft can be invoked on this host.
func (n *Nft) Available() bool { return n.available }

// Ensure creates the table and both sets if they do not exist. nft treats
// "add" of an existing table or set as a no-op.
func (n *Nft) Ensure(ctx context.Context) error {
	cmds := [][]string{
		{"add", "table", "inet", n.table},
		{"add", "set", "inet", n.table, n.set, "{", "type", "ipv4_addr", ";", "}"},
		{"add", "set", "inet", n.table, n.set + "6", "{", "type", "ipv6_addr", ";", "}"},
	}
	for _, args := range cmds {
		if err := n.exec(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// Block adds addr to the matching set.
func (n *Nft) Block(ctx context.Context, addr string) error {
	return n.element(ctx, "add", addr)
}

// Unblock removes addr from the matching set.
func (n *Nft) Unblock(ctx context.Context, addr string) error {
	return n.element(ctx, "delete", addr)
}

func (n *Nft) element(ctx context.Context, verb, addr string) error {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return fmt.Errorf("%w: %q", threat.ErrMalformedInput, addr)
	}
	ip = ip.Unmap()

	set := n.set
	if ip.Is6() {
		set += "6"
	}
	return n.exec(ctx, verb, "element", "inet", n.table, set, "{", ip.String(), "}")
}

func (n *Nft) exec(ctx context.Context, args ...string) error {
	out, err := n.run(ctx, args...)
	if err == nil {
		return nil
	}

	if msg := string(bytes.TrimSpace(out)); msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}
	return fmt.Errorf("nft %s: %w", strings.Join(args, " "), errors.Join(threat.ErrTransientIO, err))
}

// RecordOnly is the enforcer used when no platform backend is available. The
// controller keeps its blocked set but nothing is dropped.
type RecordOnly struct{}

// Name returns "none".
func (RecordOnly) Name() string { return "none" }

// Available is always false.
func (RecordOnly) Available() bool { return false }

// Block does nothing.
func (RecordOnly) Block(context.Context, string) error { return nil }

// Unblock does nothing.
func (RecordOnly) Unblock(context.Context, string) error { return nil }

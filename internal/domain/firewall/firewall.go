// Package firewall defines the contracts of the stateful firewall controller:
// the platform enforcement backend and the durable blocked-address record.
package firewall

import "context"

// Enforcer applies blocks at the platform level. Implementations are
// best-effort; the controller records an address as blocked even when the
// enforcer fails.
type Enforcer interface {
	// Name identifies the backend in status output.
	Name() string

	// Available reports whether the backend can enforce anything on this host.
	// When false the controller degrades to record keeping only.
	Available() bool

	// Block drops inbound and outbound traffic for addr.
	Block(ctx context.Context, addr string) error

	// Unblock removes a previous block for addr.
	Unblock(ctx context.Context, addr string) error
}

// BlockedRepository persists the set of blocked addresses. Load on a missing
// or corrupt record returns an empty list together with an error describing
// why.
type BlockedRepository interface {
	// Load reads the stored addresses.
	Load(ctx context.Context) ([]string, error)

	// Save replaces the stored addresses with the given sorted list.
	Save(ctx context.Context, addrs []string) error
}

// Status describes whether the controller enforces or only records.
type Status struct {
	Enforcing        bool   `json:"enforcing"`
	Backend          string `json:"backend"`
	Blocked          int    `json:"blocked"`
	LastPersistError string `json:"last_persist_error,omitempty"`
}

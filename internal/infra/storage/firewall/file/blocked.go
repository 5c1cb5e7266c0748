// Package file persists the blocked-address set as a JSON array.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/firewall"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/internal/infra/storage"
)

var _ firewall.BlockedRepository = (*blockedStore)(nil)

type blockedStore struct {
	path   string
	tracer trace.Tracer
}

// NewBlockedStore creates a firewall.BlockedRepository backed by the file at path.
func NewBlockedStore(path string, tracer trace.Tracer) firewall.BlockedRepository {
	return &blockedStore{path: path, tracer: tracer}
}

// Load reads the stored addresses. A missing file is an empty set; a corrupt
// one is an empty set plus ErrMalformedInput.
func (s *blockedStore) Load(ctx context.Context) ([]string, error) {
	var addrs []string
	err := storage.ExecuteAndTrace(ctx, s.tracer, "blockedStore.Load", []attribute.KeyValue{
		attribute.String("path", s.path),
	}, func(ctx context.Context) error {
		b, err := storage.ReadFile(s.path)
		if err != nil || len(bytes.TrimSpace(b)) == 0 {
			return err
		}
		if err := json.Unmarshal(b, &addrs); err != nil {
			addrs = nil
			return fmt.Errorf("decode %s: %w", s.path, errors.Join(threat.ErrMalformedInput, err))
		}
		return nil
	})
	return addrs, err
}

// Save replaces the stored addresses.
func (s *blockedStore) Save(ctx context.Context, addrs []string) error {
	if addrs == nil {
		addrs = []string{}
	}
	return storage.ExecuteAndTrace(ctx, s.tracer, "blockedStore.Save", []attribute.KeyValue{
		attribute.String("path", s.path),
		attribute.Int("addresses", len(addrs)),
	}, func(context.Context) error {
		return storage.WriteAtomic(s.path, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(addrs)
		})
	})
}

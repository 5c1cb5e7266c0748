// Package file persists the integrity baseline as a JSON object mapping path
// to digest. Paths ending in ".zst" are zstd compressed.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/internal/infra/storage"
)

var _ integrity.BaselineRepository = (*baselineStore)(nil)

type baselineStore struct {
	path       string
	compressed bool
	tracer     trace.Tracer
}

// NewBaselineStore creates an integrity.BaselineRepository backed by the file at path.
func NewBaselineStore(path string, tracer trace.Tracer) integrity.BaselineRepository {
	return &baselineStore{
		path:       path,
		compressed: strings.HasSuffix(path, ".zst"),
		tracer:     tracer,
	}
}

func (s *baselineStore) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("path", s.path),
		attribute.Bool("compressed", s.compressed),
	}
}

// Load reads the stored baseline. A missing file is an empty snapshot; a
// corrupt one is an empty snapshot plus ErrMalformedInput.
func (s *baselineStore) Load(ctx context.Context) (integrity.Snapshot, error) {
	snap := integrity.Snapshot{}
	err := storage.ExecuteAndTrace(ctx, s.tracer, "baselineStore.Load", s.attrs(), func(context.Context) error {
		b, err := storage.ReadFile(s.path)
		if err != nil || len(b) == 0 {
			return err
		}

		if s.compressed {
			if b, err = decompress(b); err != nil {
				return fmt.Errorf("decompress %s: %w", s.path, errors.Join(threat.ErrMalformedInput, err))
			}
		}
		if len(bytes.TrimSpace(b)) == 0 {
			return nil
		}

		var decoded integrity.Snapshot
		if err := json.Unmarshal(b, &decoded); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, errors.Join(threat.ErrMalformedInput, err))
		}
		if decoded != nil {
			snap = decoded
		}
		return nil
	})
	return snap, err
}

// Save replaces the stored baseline wholesale.
func (s *baselineStore) Save(ctx context.Context, snap integrity.Snapshot) error {
	if snap == nil {
		snap = integrity.Snapshot{}
	}
	attrs := append(s.attrs(), attribute.Int("files", len(snap)))

	return storage.ExecuteAndTrace(ctx, s.tracer, "baselineStore.Save", attrs, func(context.Context) error {
		return storage.WriteAtomic(s.path, func(w io.Writer) error {
			if !s.compressed {
				return json.NewEncoder(w).Encode(snap)
			}

			zw, err := zstd.NewWriter(w)
			if err != nil {
				return err
			}
			if err := json.NewEncoder(zw).Encode(snap); err != nil {
				_ = zw.Close()
				return err
			}
			return zw.Close()
		})
	})
}

func decompress(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(b, nil)
}

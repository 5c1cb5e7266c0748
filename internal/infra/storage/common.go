// Package storage holds the traced flat-file persistence helpers shared by the
// repository implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// ExecuteAndTrace wraps a storage operation with OpenTelemetry tracing.
// It creates a new span with the given name and attributes, executes the provided operation,
// and records any error on the span before returning it.
func ExecuteAndTrace(
	ctx context.Context,
	tracer trace.Tracer,
	spanName string,
	attributes []attribute.KeyValue,
	operation func(ctx context.Context) error,
) error {
	ctx, span := tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attributes...),
	)
	defer span.End()

	err := operation(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// ReadFile returns the contents of path. A missing file yields nil, nil.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, errors.Join(threat.ErrTransientIO, err))
	}
	return b, nil
}

// WriteAtomic streams write into a temp file beside path and renames it over
// path, so readers see either the old or the new contents.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, errors.Join(threat.ErrTransientIO, err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", errors.Join(threat.ErrTransientIO, err))
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, errors.Join(threat.ErrTransientIO, err))
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, errors.Join(threat.ErrTransientIO, err))
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, errors.Join(threat.ErrTransientIO, err))
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, errors.Join(threat.ErrTransientIO, err))
	}
	return nil
}

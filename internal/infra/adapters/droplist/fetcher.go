// Package droplist reads network drop-lists in the Spamhaus DROP format from
// HTTP URLs or local files.
package droplist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// DefaultTimeout bounds a single HTTP fetch.
const DefaultTimeout = 6 * time.Second

const maxListBytes = 16 << 20

var _ reputation.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves drop-list sources.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a fetcher. A nil client uses a traced default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Fetcher{http: client}
}

// Fetch returns the entries of source, which is an http(s) URL or a file path.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]string, error) {
	rc, err := f.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	entries, err := Parse(io.LimitReader(rc, maxListBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, errors.Join(threat.ErrTransientIO, err))
	}
	return entries, nil
}

func (f *Fetcher) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		fh, err := os.Open(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", source, errors.Join(threat.ErrTransientIO, err))
		}
		return fh, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", source, errors.Join(threat.ErrConfigurationGap, err))
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, errors.Join(threat.ErrTransientIO, err))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: status %d", source, threat.ErrTransientIO, resp.StatusCode)
	}
	return resp.Body, nil
}

// Parse extracts entries from a drop-list. Blank lines and lines starting with
// ';' or '#' are skipped; the entry is the trimmed text before the first ';'.
func Parse(r io.Reader) ([]string, error) {
	var entries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		entry, _, _ := strings.Cut(line, ";")
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries, sc.Err()
}

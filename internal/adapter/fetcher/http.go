package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cwygoda/nftfolder/internal/domain"
)

const (
	chunkSize = 32 * 1024
	userAgent = "nftfolder/1.0"
)

// HTTPFetcher streams assets over HTTP(S) to disk.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher using client. It never retries.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Name() string {
	return "http"
}

func (f *HTTPFetcher) Match(asset domain.Asset) bool {
	if asset.Inline {
		return false
	}
	return strings.HasPrefix(asset.URL, "https://") || strings.HasPrefix(asset.URL, "http://")
}

// Fetch downloads asset.URL into path. A declared Content-Length that does
// not match the bytes received fails with domain.ErrSizeMismatch.
func (f *HTTPFetcher) Fetch(ctx context.Context, asset domain.Asset, path string, progress chan<- domain.ByteProgress) (n int64, err error) {
	file, err := createExclusive(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = finish(file, path, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", domain.ErrTransport, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	buf := make([]byte, chunkSize)
	for {
		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := file.Write(buf[:nr])
			n += int64(nw)
			if writeErr == nil && nw != nr {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return n, fmt.Errorf("%w: %w", domain.ErrWrite, writeErr)
			}
			offer(progress, domain.ByteProgress{Name: asset.Name, Done: n, Total: total})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// A body cut short of its declared length is a truncated transfer.
			if total > 0 && errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			return n, fmt.Errorf("%w: read body: %w", domain.ErrTransport, readErr)
		}
	}

	if total > 0 && n != total {
		return n, fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrSizeMismatch, total, n)
	}
	return n, nil
}

// checkStatusCode returns an error for non-success status codes.
func checkStatusCode(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))
}

// offer sends without blocking; updates are dropped when the sink is busy.
func offer(ch chan<- domain.ByteProgress, p domain.ByteProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

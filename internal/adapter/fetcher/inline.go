package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cwygoda/nftfolder/internal/domain"
)

// InlineFetcher writes base64 data-URL payloads without a network call.
type InlineFetcher struct{}

// NewInlineFetcher creates a new inline fetcher.
func NewInlineFetcher() *InlineFetcher {
	return &InlineFetcher{}
}

func (f *InlineFetcher) Name() string {
	return "inline"
}

func (f *InlineFetcher) Match(asset domain.Asset) bool {
	return asset.Inline
}

func (f *InlineFetcher) Fetch(ctx context.Context, asset domain.Asset, path string, progress chan<- domain.ByteProgress) (n int64, err error) {
	data, err := decodeBase64(asset.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	file, err := createExclusive(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = finish(file, path, err)
	}()

	nw, err := file.Write(data)
	if err != nil {
		return int64(nw), fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}
	offer(progress, domain.ByteProgress{Name: asset.Name, Done: int64(nw), Total: int64(len(data))})
	return int64(nw), nil
}

// decodeBase64 accepts padded and unpadded standard encoding.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

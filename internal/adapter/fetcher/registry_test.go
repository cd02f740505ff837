package fetcher

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/nftfolder/internal/domain"
)

type mockFetcher struct {
	name    string
	matcher func(domain.Asset) bool
}

func (m *mockFetcher) Name() string { return m.name }
func (m *mockFetcher) Match(a domain.Asset) bool { return m.matcher(a) }
func (m *mockFetcher) Fetch(ctx context.Context, a domain.Asset, path string, progress chan<- domain.ByteProgress) (int64, error) {
	return 0, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	r.Register(&mockFetcher{name: "f1", matcher: func(domain.Asset) bool { return false }})
	r.Register(&mockFetcher{name: "f2", matcher: func(domain.Asset) bool { return false }})

	assert.Len(t, r.Fetchers(), 2)
}

func TestRegistry_Match(t *testing.T) {
	inline := &mockFetcher{name: "inline", matcher: func(a domain.Asset) bool { return a.Inline }}
	generic := &mockFetcher{name: "generic", matcher: func(domain.Asset) bool { return true }}
	r := NewRegistry(inline, generic)

	tests := []struct {
		asset    domain.Asset
		wantName string
	}{
		{domain.Asset{FileName: "a.svg", Inline: true}, "inline"},
		{domain.Asset{FileName: "b.png", URL: "https://cdn.example.com/b.png"}, "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.asset.FileName, func(t *testing.T) {
			f := r.Match(tt.asset)
			require.NotNil(t, f)
			assert.Equal(t, tt.wantName, f.Name())
		})
	}
}

func TestRegistry_Match_NoMatch(t *testing.T) {
	r := NewRegistry(&mockFetcher{name: "never", matcher: func(domain.Asset) bool { return false }})

	assert.Nil(t, r.Match(domain.Asset{URL: "ftp://example.com/x.png"}))
	assert.Nil(t, NewRegistry().Match(domain.Asset{}))
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry(NewInlineFetcher(), NewHTTPFetcher(http.DefaultClient))

	assert.Equal(t, "inline", r.Match(domain.Asset{Inline: true, URL: "PHN2Zz4="}).Name())
	assert.Equal(t, "http", r.Match(domain.Asset{URL: "https://cdn.example.com/1.png"}).Name())
	assert.Equal(t, "http", r.Match(domain.Asset{URL: "http://cdn.example.com/1.png"}).Name())
	assert.Nil(t, r.Match(domain.Asset{URL: "ar://abc/1.png"}))
}

package fetcher

import "github.com/cwygoda/nftfolder/internal/domain"

// Registry holds registered asset fetchers.
type Registry struct {
	fetchers []domain.AssetFetcher
}

// NewRegistry creates a new fetcher registry.
func NewRegistry(fetchers ...domain.AssetFetcher) *Registry {
	r := &Registry{}
	for _, f := range fetchers {
		r.Register(f)
	}
	return r
}

// Register adds a fetcher to the registry.
func (r *Registry) Register(f domain.AssetFetcher) {
	r.fetchers = append(r.fetchers, f)
}

// Match returns the first fetcher that accepts the asset, or nil.
func (r *Registry) Match(asset domain.Asset) domain.AssetFetcher {
	for _, f := range r.fetchers {
		if f.Match(asset) {
			return f
		}
	}
	return nil
}

// Fetchers returns all registered fetchers.
func (r *Registry) Fetchers() []domain.AssetFetcher {
	return r.fetchers
}

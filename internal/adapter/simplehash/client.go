// Package simplehash pages through the SimpleHash owners listing.
package simplehash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwygoda/nftfolder/internal/domain"
	"github.com/cwygoda/nftfolder/internal/logging"
	"github.com/cwygoda/nftfolder/internal/metrics"
)

const (
	DefaultBaseURL  = "https://api.simplehash.com/api/v0"
	DefaultPageSize = 50
	ownersPath      = "/nfts/owners_v2"
	maxErrorBody    = 512
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Chains   []string
	PageSize int
	// PageInterval is the minimum time between two page requests.
	// Zero means unlimited.
	PageInterval time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Client implements domain.RecordSource.
type Client struct {
	baseURL  string
	apiKey   string
	chains   string
	pageSize int
	limiter  *rate.Limiter
	http     *http.Client
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewClient creates a new SimpleHash client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if len(opts.Chains) == 0 {
		opts.Chains = []string{"ethereum"}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if opts.PageInterval > 0 {
		limit = rate.Every(opts.PageInterval)
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		chains:   strings.Join(opts.Chains, ","),
		pageSize: opts.PageSize,
		limiter:  rate.NewLimiter(limit, 1),
		http:     opts.HTTPClient,
		log:      opts.Logger.With("component", "simplehash"),
		metrics:  opts.Metrics,
	}
}

// Records returns the owner's records page by page. Every call of the
// returned sequence starts again from the first page.
func (c *Client) Records(ctx context.Context, owner string) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		var cursor domain.Cursor
		for page := 1; ; page++ {
			resp, err := c.fetchPage(ctx, owner, cursor, page)
			if err != nil {
				c.metrics.Page("error")
				c.log.Warn("page fetch failed", "page", page, "error", err)
				yield(domain.Record{}, err)
				return
			}
			c.metrics.Page("ok")
			c.log.Debug("page fetched", "page", page, "records", len(resp.NFTs))
			for _, n := range resp.NFTs {
				if !yield(n.record(), nil) {
					return
				}
			}
			if resp.NextCursor == nil || *resp.NextCursor == "" {
				return
			}
			cursor = domain.Cursor(*resp.NextCursor)
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, owner string, cursor domain.Cursor, page int) (*ownersResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.PageFetchError{Page: page, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(owner, cursor), nil)
	if err != nil {
		return nil, &domain.PageFetchError{Page: page, Err: err}
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.PageFetchError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.PageFetchError{Page: page, StatusCode: resp.StatusCode, Message: msg}
	}

	var out ownersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.PageFetchError{Page: page, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

func (c *Client) pageURL(owner string, cursor domain.Cursor) string {
	q := url.Values{}
	q.Set("chains", c.chains)
	q.Set("wallet_addresses", owner)
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("cursor", string(cursor))
	}
	return c.baseURL + ownersPath + "?" + q.Encode()
}

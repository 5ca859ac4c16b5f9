// Package kabuweb implements the DataProvider over the kabuweb finance
// portal. HTML pages are scraped with goquery, paced by a client-side
// rate limiter, and snapshots are cached in Redis so repeated scans
// inside the TTL do not hit the site again.
package kabuweb

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/config"
	"github.com/kaizumaki/kabuscan/pkg/httputil"
	"github.com/kaizumaki/kabuscan/pkg/logger"
	"github.com/kaizumaki/kabuscan/pkg/redis"
)

// maxListingPages bounds universe pagination against a broken pager.
const maxListingPages = 200

// Client scrapes instrument data from kabuweb.
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      *redis.Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
}

// New creates a kabuweb client. The cache may be backed by a disabled
// Redis client; misses then simply always scrape.
func New(cfg config.ProviderConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     log,
	}
}

// Universe scrapes the full listing index in page order. The returned
// code order is the page order, which the site keeps stable intraday.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	var codes []string

	for page := 1; page <= maxListingPages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		url := fmt.Sprintf("%s/listing?page=%d", c.baseURL, page)
		body, err := c.fetchHTML(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch listing page %d: %w", page, err)
		}

		pageCodes, hasMore, err := parseListing(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse listing page %d: %w", page, err)
		}
		codes = append(codes, pageCodes...)

		if !hasMore {
			break
		}
	}

	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: empty listing index", contracts.ErrDataUnavailable)
	}

	c.logger.WithField("count", len(codes)).Info("Universe loaded")
	return codes, nil
}

// FetchSnapshot returns a snapshot for one code, from cache when fresh.
func (c *Client) FetchSnapshot(ctx context.Context, code string) (*contracts.InstrumentSnapshot, error) {
	var cached contracts.InstrumentSnapshot
	found, err := c.cache.Get(ctx, redis.SnapshotKey(code), &cached)
	if err != nil {
		c.logger.WithError(err).WithField("code", code).Warn("Snapshot cache read failed")
	}
	if found {
		return &cached, nil
	}

	url := fmt.Sprintf("%s/stocks/%s", c.baseURL, code)
	body, err := c.fetchHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", code, err)
	}

	snapshot, err := parseQuote(body, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrDataUnavailable, code, err)
	}
	snapshot.FetchedAt = time.Now()

	if err := c.cache.Set(ctx, redis.SnapshotKey(code), snapshot, c.cacheTTL); err != nil {
		c.logger.WithError(err).WithField("code", code).Warn("Snapshot cache write failed")
	}

	return snapshot, nil
}

// fetchHTML performs one rate-limited GET and returns the body.
func (c *Client) fetchHTML(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body failed: %w", err)
	}
	return string(body), nil
}

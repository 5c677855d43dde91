package keepa

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultBaseURL = "https://api.keepa.com"

// DomainUS is the Keepa domain ID for amazon.com.
const DomainUS = 1

// HistoryCache is a persistent cache for product price history.
type HistoryCache interface {
	GetPriceHistory(asin string) ([]PricePoint, bool)
	SetPriceHistory(asin string, points []PricePoint)
}

// Client is a rate-limited Keepa HTTP client with token accounting.
type Client struct {
	http    *http.Client
	sem     chan struct{}
	apiKey  string
	domain  int
	baseURL string

	store HistoryCache      // persistent cache (SQLite)
	group singleflight.Group // dedupes concurrent fetches for the same ASIN

	mu     sync.Mutex
	tokens TokenState
}

// NewClient creates a Keepa client for amazon.com with the given API key
// and persistent history cache. Keepa throttles by token balance rather than
// request rate, so the semaphore only bounds concurrent connections.
func NewClient(apiKey string, store HistoryCache) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		sem:     make(chan struct{}, 10),
		apiKey:  apiKey,
		domain:  DomainUS,
		baseURL: defaultBaseURL,
		store:   store,
	}
}

// SetBaseURL overrides the API base URL (used by tests).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// HealthCheck verifies connectivity and refreshes the token balance.
func (c *Client) HealthCheck() bool {
	_, err := c.RefreshTokens()
	return err == nil
}

// GetJSON fetches a URL and decodes JSON into dst.
func (c *Client) GetJSON(rawURL string, dst interface{}) error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "arbitrage-vault/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("keepa %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

// FetchProduct fetches a single product with full price history.
// The persistent cache is consulted first; concurrent fetches for the same
// ASIN are collapsed into one upstream request.
func (c *Client) FetchProduct(asin string) (*Product, error) {
	v, err, _ := c.group.Do(asin, func() (interface{}, error) {
		q := url.Values{}
		q.Set("key", c.apiKey)
		q.Set("domain", fmt.Sprintf("%d", c.domain))
		q.Set("asin", asin)
		q.Set("history", "1")
		q.Set("stats", "90")

		var resp productResponse
		if err := c.GetJSON(c.baseURL+"/product?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		c.updateTokens(resp.TokensLeft, resp.RefillRate, resp.RefillIn)

		if len(resp.Products) == 0 {
			return nil, fmt.Errorf("keepa: no product for asin %s", asin)
		}
		return &resp.Products[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

// FetchPriceHistory returns the used-price history for an ASIN.
// Cache hit path costs no tokens; a miss fetches from Keepa and stores the
// parsed series for subsequent calls.
func (c *Client) FetchPriceHistory(asin string) ([]PricePoint, error) {
	if c.store != nil {
		if points, ok := c.store.GetPriceHistory(asin); ok {
			return points, nil
		}
	}

	product, err := c.FetchProduct(asin)
	if err != nil {
		return nil, err
	}
	points := product.UsedPriceHistory()
	if c.store != nil {
		c.store.SetPriceHistory(asin, points)
	}
	return points, nil
}

// IsCached reports whether the ASIN has a fresh price history in the
// persistent cache. The token budget guard uses this to estimate how many
// products a batch will actually have to pay for.
func (c *Client) IsCached(asin string) bool {
	if c.store == nil {
		return false
	}
	_, ok := c.store.GetPriceHistory(asin)
	return ok
}

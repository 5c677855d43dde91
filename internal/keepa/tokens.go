package keepa

import (
	"fmt"
	"net/url"
	"time"
)

// TokensPerProduct is the estimated token cost of one /product request with
// full history. Keepa charges 1 token for the product plus extra for history
// and stats; 3 is a deliberately conservative estimate so the budget guard
// errs on the side of refusing.
const TokensPerProduct = 3

// TokenState is a snapshot of the metered API token balance.
type TokenState struct {
	TokensLeft int       `json:"tokens_left"`
	RefillRate int       `json:"refill_rate"`  // tokens per minute
	RefillInMs int64     `json:"refill_in_ms"` // milliseconds until next refill
	UpdatedAt  time.Time `json:"updated_at"`
}

// Known reports whether the balance has been observed at least once.
func (t TokenState) Known() bool {
	return !t.UpdatedAt.IsZero()
}

// Tokens returns the most recently observed token state without a request.
func (c *Client) Tokens() TokenState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// RefreshTokens queries the /token endpoint for the live balance.
func (c *Client) RefreshTokens() (TokenState, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)

	var resp struct {
		TokensLeft int   `json:"tokensLeft"`
		RefillRate int   `json:"refillRate"`
		RefillIn   int64 `json:"refillIn"`
	}
	if err := c.GetJSON(c.baseURL+"/token?"+q.Encode(), &resp); err != nil {
		return TokenState{}, fmt.Errorf("refresh tokens: %w", err)
	}
	c.updateTokens(resp.TokensLeft, resp.RefillRate, resp.RefillIn)
	return c.Tokens(), nil
}

// EstimateCost returns the estimated token cost of fetching n products.
func EstimateCost(n int) int {
	if n <= 0 {
		return 0
	}
	return n * TokensPerProduct
}

func (c *Client) updateTokens(left, rate int, refillInMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = TokenState{
		TokensLeft: left,
		RefillRate: rate,
		RefillInMs: refillInMs,
		UpdatedAt:  time.Now().UTC(),
	}
}

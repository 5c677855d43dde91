package keepa

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeFromKeepaMinutes_Epoch(t *testing.T) {
	// Keepa minute 0 is unix minute 21564000 = 2011-01-01 00:00 UTC.
	got := TimeFromKeepaMinutes(0)
	want := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("TimeFromKeepaMinutes(0) = %v, want %v", got, want)
	}
	// One day later.
	got = TimeFromKeepaMinutes(1440)
	if !got.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("TimeFromKeepaMinutes(1440) = %v, want %v", got, want.AddDate(0, 0, 1))
	}
}

func TestParsePriceSeries_CentsAndGaps(t *testing.T) {
	// [minute, cents] pairs; -1 marks days with no offer and must be dropped.
	csv := []int{0, 1299, 1440, -1, 2880, 2550, 4320, 0}
	points := ParsePriceSeries(csv)
	if len(points) != 2 {
		t.Fatalf("ParsePriceSeries len = %d, want 2", len(points))
	}
	if math.Abs(points[0].Price-12.99) > 1e-9 {
		t.Errorf("points[0].Price = %v, want 12.99", points[0].Price)
	}
	if math.Abs(points[1].Price-25.50) > 1e-9 {
		t.Errorf("points[1].Price = %v, want 25.50", points[1].Price)
	}
	if !points[1].Time.Equal(TimeFromKeepaMinutes(2880)) {
		t.Errorf("points[1].Time = %v", points[1].Time)
	}
}

func TestParsePriceSeries_EmptyAndOdd(t *testing.T) {
	if got := ParsePriceSeries(nil); got != nil {
		t.Errorf("ParsePriceSeries(nil) = %v, want nil", got)
	}
	if got := ParsePriceSeries([]int{100}); got != nil {
		t.Errorf("ParsePriceSeries(single) = %v, want nil", got)
	}
}

func TestUsedPriceHistory_FallbackToNew(t *testing.T) {
	p := &Product{CSV: [][]int{
		{},                // amazon
		{0, 1000, 60, 1100}, // new
		{},                // used (empty)
	}}
	points := p.UsedPriceHistory()
	if len(points) != 2 {
		t.Fatalf("UsedPriceHistory fallback len = %d, want 2", len(points))
	}
	if points[0].Price != 10.00 {
		t.Errorf("points[0].Price = %v, want 10", points[0].Price)
	}
}

func TestEstimateCost(t *testing.T) {
	if got := EstimateCost(0); got != 0 {
		t.Errorf("EstimateCost(0) = %d, want 0", got)
	}
	if got := EstimateCost(10); got != 10*TokensPerProduct {
		t.Errorf("EstimateCost(10) = %d, want %d", got, 10*TokensPerProduct)
	}
}

func TestFetchProduct_TokenAccounting(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("asin") != "B000TEST01" {
			t.Errorf("asin = %q", r.URL.Query().Get("asin"))
		}
		fmt.Fprint(w, `{
			"tokensLeft": 57,
			"refillRate": 5,
			"refillIn": 12000,
			"products": [{"asin":"B000TEST01","title":"Test Book","csv":[[],[],[0,1299,1440,1350]]}]
		}`)
	}))
	defer ts.Close()

	c := NewClient("test-key", nil)
	c.SetBaseURL(ts.URL)

	p, err := c.FetchProduct("B000TEST01")
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}
	if p.Title != "Test Book" {
		t.Errorf("Title = %q", p.Title)
	}
	if got := len(p.UsedPriceHistory()); got != 2 {
		t.Errorf("UsedPriceHistory len = %d, want 2", got)
	}

	state := c.Tokens()
	if !state.Known() {
		t.Fatal("token state should be known after a fetch")
	}
	if state.TokensLeft != 57 || state.RefillRate != 5 {
		t.Errorf("TokenState = %+v", state)
	}
	if state.RefillInMs != 12000 {
		t.Errorf("RefillInMs = %d, want 12000", state.RefillInMs)
	}
}

func TestFetchPriceHistory_CacheHitSkipsNetwork(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"tokensLeft":10,"refillRate":5,"refillIn":0,
			"products":[{"asin":"B000TEST02","csv":[[],[],[0,500]]}]}`)
	}))
	defer ts.Close()

	store := &memCache{data: map[string][]PricePoint{}}
	c := NewClient("test-key", store)
	c.SetBaseURL(ts.URL)

	first, err := c.FetchPriceHistory("B000TEST02")
	if err != nil {
		t.Fatalf("FetchPriceHistory: %v", err)
	}
	if len(first) != 1 || calls != 1 {
		t.Fatalf("first fetch: len=%d calls=%d", len(first), calls)
	}

	second, err := c.FetchPriceHistory("B000TEST02")
	if err != nil {
		t.Fatalf("FetchPriceHistory (cached): %v", err)
	}
	if len(second) != 1 {
		t.Errorf("cached len = %d, want 1", len(second))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cache hit must not hit network)", calls)
	}
	if !c.IsCached("B000TEST02") {
		t.Error("IsCached should be true after a fetch")
	}
}

// memCache is an in-memory HistoryCache for tests.
type memCache struct {
	data map[string][]PricePoint
}

func (m *memCache) GetPriceHistory(asin string) ([]PricePoint, bool) {
	p, ok := m.data[asin]
	return p, ok
}

func (m *memCache) SetPriceHistory(asin string, points []PricePoint) {
	m.data[asin] = points
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"arbitrage-vault/internal/keepa"
)

const (
	// DefaultMaxResults is the default number of results returned when not specified.
	DefaultMaxResults = 100
	// defaultConcurrency bounds parallel product fetches.
	defaultConcurrency = 8
)

// ErrInsufficientTokens is returned when the estimated cost of a batch would
// drain the metered API below the configured reserve. The batch is refused
// before any token is spent.
var ErrInsufficientTokens = errors.New("insufficient API tokens")

// HistoryProvider is an interface for fetching and caching price history.
type HistoryProvider interface {
	GetPriceHistory(asin string) ([]keepa.PricePoint, bool)
	SetPriceHistory(asin string, points []keepa.PricePoint)
}

// Scanner orchestrates product analyses against the upstream price source.
type Scanner struct {
	Source  PriceSource
	History HistoryProvider

	// TokenReserve is the token balance floor the budget guard protects.
	TokenReserve int
	// Concurrency bounds parallel fetches; 0 uses the default.
	Concurrency int
}

// NewScanner creates a Scanner backed by the given price source.
func NewScanner(source PriceSource) *Scanner {
	return &Scanner{Source: source, TokenReserve: 20}
}

// Analyze runs the corridor and guidance pipeline for every requested ASIN,
// ranked by estimated ROI descending. The progress callback receives
// human-readable status lines for streaming to the UI; it may be nil.
func (s *Scanner) Analyze(ctx context.Context, params AnalyzeParams, progress func(string)) ([]AnalysisResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if len(params.ASINs) == 0 {
		return []AnalysisResult{}, nil
	}
	applyDefaults(&params)

	if err := s.checkTokenBudget(params.ASINs, progress); err != nil {
		return nil, err
	}

	progress(fmt.Sprintf("Analyzing %d products...", len(params.ASINs)))

	var mu sync.Mutex
	results := make([]AnalysisResult, 0, len(params.ASINs))

	g, ctx := errgroup.WithContext(ctx)
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	g.SetLimit(concurrency)

	for _, asin := range params.ASINs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.analyzeOne(asin, params)
			if err != nil {
				// A single bad ASIN must not sink the batch.
				progress(fmt.Sprintf("Skipping %s: %v", asin, err))
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results = filterResults(results, params)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Guidance.EstimatedROIPct > results[j].Guidance.EstimatedROIPct
	})
	if len(results) > params.MaxResults {
		results = results[:params.MaxResults]
	}

	progress(fmt.Sprintf("Done: %d results", len(results)))
	return results, nil
}

// AnalyzeProduct runs the full pipeline for a single ASIN. The same token
// budget guard applies as for batches.
func (s *Scanner) AnalyzeProduct(asin string, params AnalyzeParams) (AnalysisResult, error) {
	applyDefaults(&params)
	if err := s.checkTokenBudget([]string{asin}, func(string) {}); err != nil {
		return AnalysisResult{}, err
	}
	return s.analyzeOne(asin, params)
}

func (s *Scanner) analyzeOne(asin string, params AnalyzeParams) (AnalysisResult, error) {
	points, title, salesRank, err := s.priceHistory(asin)
	if err != nil {
		return AnalysisResult{}, err
	}

	filtered := FilterWindow(points, params.WindowDays, time.Now().UTC())
	corridor := ComputeCorridor(filtered, params.MinDataPoints)
	corridor.WindowDays = params.WindowDays

	guidance := ComputeGuidance(corridor, GuidanceParams{
		SourcePrice:  params.SourcePrices[asin],
		SalesRank:    salesRank,
		TargetROIPct: params.TargetROIPct,
		FeePct:       params.FeePct,
	})

	result := AnalysisResult{
		ASIN:     asin,
		Title:    title,
		Corridor: corridor,
		Guidance: guidance,
	}
	if params.Seasonal {
		pattern := DetectPattern(points)
		result.Seasonal = &pattern
	}
	return result, nil
}

// priceHistory serves history from the persistent cache when fresh,
// otherwise fetches the product from the metered source. Cache hits carry
// no title or sales rank; that is acceptable for re-analysis of recently
// seen products.
func (s *Scanner) priceHistory(asin string) ([]keepa.PricePoint, string, int, error) {
	if s.History != nil {
		if points, ok := s.History.GetPriceHistory(asin); ok {
			return points, "", 0, nil
		}
	}
	product, err := s.Source.FetchProduct(asin)
	if err != nil {
		return nil, "", 0, err
	}
	points := product.UsedPriceHistory()
	if s.History != nil {
		s.History.SetPriceHistory(asin, points)
	}
	return points, product.Title, product.SalesRank, nil
}

// checkTokenBudget estimates the batch cost from uncached ASINs and refuses
// the whole batch when it would push the balance below the reserve.
func (s *Scanner) checkTokenBudget(asins []string, progress func(string)) error {
	uncached := 0
	for _, asin := range asins {
		if s.History != nil {
			if _, ok := s.History.GetPriceHistory(asin); ok {
				continue
			}
		}
		if !s.Source.IsCached(asin) {
			uncached++
		}
	}
	if uncached == 0 {
		return nil
	}

	cost := keepa.EstimateCost(uncached)
	state := s.Source.Tokens()
	if !state.Known() {
		// No balance observed yet; let the first request establish one
		// rather than refusing blind.
		return nil
	}
	if state.TokensLeft-cost < s.TokenReserve {
		return fmt.Errorf("%w: need %d for %d uncached products, have %d (reserve %d)",
			ErrInsufficientTokens, cost, uncached, state.TokensLeft, s.TokenReserve)
	}
	progress(fmt.Sprintf("Token budget ok: %d tokens for %d uncached products (%d left)",
		cost, uncached, state.TokensLeft))
	return nil
}

func filterResults(results []AnalysisResult, params AnalyzeParams) []AnalysisResult {
	if params.MinROIPct <= 0 && !params.OnlyBuy {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if params.MinROIPct > 0 && r.Guidance.EstimatedROIPct < params.MinROIPct {
			continue
		}
		if params.OnlyBuy && r.Guidance.Recommendation != RecommendBuy {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func applyDefaults(params *AnalyzeParams) {
	if params.WindowDays <= 0 {
		params.WindowDays = DefaultWindowDays
	}
	if params.MinDataPoints <= 0 {
		params.MinDataPoints = DefaultMinDataPoints
	}
	if params.TargetROIPct <= 0 {
		params.TargetROIPct = DefaultTargetROIPct
	}
	if params.FeePct <= 0 {
		params.FeePct = DefaultFeePct
	}
	if params.MaxResults <= 0 {
		params.MaxResults = DefaultMaxResults
	}
}

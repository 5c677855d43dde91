package keepa

import "time"

// Keepa timestamps are minutes since a custom epoch:
// unix minutes minus this offset.
const keepaEpochOffsetMinutes = 21564000

// Indexes into the Keepa csv history arrays.
const (
	csvAmazon    = 0 // Amazon's own offer
	csvNew       = 1 // marketplace new
	csvUsed      = 2 // marketplace used
	csvSalesRank = 3
)

// PricePoint is one observed price for a product at a point in time.
// Price is in dollars and always strictly positive; days Keepa reports
// as "no offer" (-1) are dropped during parsing, never emitted as zero.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Product is a single product record from the Keepa API.
type Product struct {
	ASIN          string  `json:"asin"`
	Title         string  `json:"title"`
	SalesRank     int     `json:"salesRank"`
	CSV           [][]int `json:"csv"`
	LastUpdate    int64   `json:"lastUpdate"`    // Keepa minutes
	TrackingSince int64   `json:"trackingSince"` // Keepa minutes
}

// productResponse is the Keepa /product envelope. Every response carries the
// caller's remaining token balance, which the client records for budgeting.
type productResponse struct {
	Products   []Product `json:"products"`
	TokensLeft int       `json:"tokensLeft"`
	RefillRate int       `json:"refillRate"`
	RefillIn   int64     `json:"refillIn"` // milliseconds
}

// TimeFromKeepaMinutes converts a Keepa timestamp to UTC time.
func TimeFromKeepaMinutes(m int64) time.Time {
	return time.Unix((m+keepaEpochOffsetMinutes)*60, 0).UTC()
}

// ParsePriceSeries converts a flat Keepa csv array ([time, value, time,
// value, ...], prices in cents, -1 = no data) into price points.
// Invalid and no-data entries are dropped.
func ParsePriceSeries(csv []int) []PricePoint {
	if len(csv) < 2 {
		return nil
	}
	points := make([]PricePoint, 0, len(csv)/2)
	for i := 0; i+1 < len(csv); i += 2 {
		cents := csv[i+1]
		if cents <= 0 {
			continue
		}
		points = append(points, PricePoint{
			Time:  TimeFromKeepaMinutes(int64(csv[i])),
			Price: float64(cents) / 100,
		})
	}
	return points
}

// UsedPriceHistory returns the marketplace used price series, falling back
// to the new price series for products that have never sold used.
func (p *Product) UsedPriceHistory() []PricePoint {
	if points := p.seriesAt(csvUsed); len(points) > 0 {
		return points
	}
	return p.seriesAt(csvNew)
}

// NewPriceHistory returns the marketplace new price series.
func (p *Product) NewPriceHistory() []PricePoint {
	return p.seriesAt(csvNew)
}

func (p *Product) seriesAt(idx int) []PricePoint {
	if idx < 0 || idx >= len(p.CSV) {
		return nil
	}
	return ParsePriceSeries(p.CSV[idx])
}

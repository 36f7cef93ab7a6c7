package domain

import "time"

// Market tags understood by the ingestion layer.
const (
	MarketUS = "us"
	MarketPL = "pl"
)

// Canonical price panel column names.
const (
	ColSymbol = "symbol"
	ColDate   = "date"
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColMarket = "market"
)

// PriceBar is one daily observation for one entity.
// Unique by (market, symbol, date).
type PriceBar struct {
	Symbol string    // entity identifier, upper case
	Date   time.Time // calendar date, UTC midnight
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Market string // market tag: us, pl
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Package market stores and serves daily price history. Bars are written by
// the sync service and read by every downstream consumer: feature
// calculation, trade execution, valuation and evaluation.
package market

// Bar is one daily OHLCV bar for a symbol. Dates are YYYY-MM-DD strings,
// matching the storage format.
type Bar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

package portfolio

import "time"

// CashSymbol is the synthetic row that tracks the cash balance; its
// quantity is the balance and its avg_cost stays 1.0.
const CashSymbol = "CASH"

// Position is one holding in the portfolio table.
type Position struct {
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"quantity"`
	AvgCost     float64   `json:"avg_cost"`
	LastUpdated time.Time `json:"last_updated"`
}

// PnL summarizes open positions against current prices.
type PnL struct {
	TotalCost  float64 `json:"total_cost"`
	TotalValue float64 `json:"total_value"`
	Unrealized float64 `json:"unrealized"`
	Percent    float64 `json:"percent"`
}

// ComputePnL values positions at the given prices. Symbols without a
// price contribute zero value, which is how holdings look before their
// first price sync.
func ComputePnL(positions []Position, prices map[string]float64) PnL {
	var out PnL
	for _, pos := range positions {
		out.TotalCost += pos.Quantity * pos.AvgCost
		out.TotalValue += pos.Quantity * prices[pos.Symbol]
	}
	out.Unrealized = out.TotalValue - out.TotalCost
	if out.TotalCost > 0 {
		out.Percent = out.Unrealized / out.TotalCost * 100
	}
	return out
}

package trading

import (
	"fmt"
	"time"

	"github.com/atlasquant/signal-engine/internal/modules/signal"
)

// Trade is one executed order. Sells carry a negative quantity; Amount is
// the cash moved, positive for both sides.
type Trade struct {
	ID         int64         `json:"id"`
	SignalID   int64         `json:"signal_id"`
	TradeDate  string        `json:"trade_date"`
	ExecutedAt time.Time     `json:"executed_at"`
	Symbol     string        `json:"symbol"`
	Action     signal.Action `json:"action"`
	Quantity   float64       `json:"quantity"`
	Price      float64       `json:"price"`
	Amount     float64       `json:"amount"`
}

// Validate checks the invariants the ledger schema expects.
func (t *Trade) Validate() error {
	switch t.Action {
	case signal.ActionBuy:
		if t.Quantity <= 0 {
			return fmt.Errorf("invalid trade: BUY quantity %.4f must be positive", t.Quantity)
		}
	case signal.ActionSell:
		if t.Quantity >= 0 {
			return fmt.Errorf("invalid trade: SELL quantity %.4f must be negative", t.Quantity)
		}
	default:
		return fmt.Errorf("invalid trade: action %q", t.Action)
	}

	if t.Price <= 0 {
		return fmt.Errorf("invalid trade: price %.4f must be positive", t.Price)
	}
	if t.Amount < 0 {
		return fmt.Errorf("invalid trade: amount %.4f must not be negative", t.Amount)
	}
	return nil
}

// TradeWithSignal pairs a trade with the feature payload of the signal
// that produced it. The tuning engine evaluates trades in this shape.
type TradeWithSignal struct {
	Trade
	Features signal.Features `json:"features"`
}

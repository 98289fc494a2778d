package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateSMA returns the simple moving average of the trailing period.
// Returns 0 when there are fewer closes than the period; callers decide
// their own fallback (feature extraction substitutes the current price).
func CalculateSMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}

	sma := talib.Sma(closes, period)
	return sma[len(sma)-1]
}

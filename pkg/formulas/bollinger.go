package formulas

import (
	"github.com/markcheno/go-talib"
)

// Bollinger holds Bollinger Band values plus the current price's position
// within the bands.
//
// Position ranges from -1.0 (at or below the lower band) to +1.0 (at or
// above the upper band), with 0.0 at the middle band.
type Bollinger struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Position float64 `json:"position"`
}

// CalculateBollinger computes Bollinger Bands over the trailing period and
// the latest close's position within them.
//
//	Middle = SMA(period)
//	Upper  = Middle + stdMultiplier * stddev
//	Lower  = Middle - stdMultiplier * stddev
//
// The standard deviation is the sample deviation of the trailing window.
// Fewer closes than the period returns the zero value, which downstream
// scoring treats as "no band signal". Collapsed bands yield position 0.
func CalculateBollinger(closes []float64, period int, stdMultiplier float64) Bollinger {
	if period <= 0 || len(closes) < period {
		return Bollinger{}
	}

	sma := talib.Sma(closes, period)
	middle := sma[len(sma)-1]

	window := closes[len(closes)-period:]
	std := StdDev(window)

	bands := Bollinger{
		Upper:  middle + stdMultiplier*std,
		Middle: middle,
		Lower:  middle - stdMultiplier*std,
	}

	halfWidth := stdMultiplier * std
	if halfWidth <= 0 {
		return bands
	}

	price := closes[len(closes)-1]
	position := (price - middle) / halfWidth
	if position > 1.0 {
		position = 1.0
	}
	if position < -1.0 {
		position = -1.0
	}
	bands.Position = position

	return bands
}

package formulas

// CalculateRSI computes the Relative Strength Index over the trailing period.
//
// Average gain and average loss are simple means of the last `period` daily
// deltas. Insufficient history returns the neutral midpoint 50 so callers
// never have to special-case short series a second time. A window with no
// losses returns 100.
func CalculateRSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

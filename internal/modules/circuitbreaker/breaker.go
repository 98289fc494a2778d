// Package circuitbreaker watches intramonth drawdown of total portfolio
// value. The breaker is advisory: the signal pipeline records it in the
// day's features so operators and the tuner can see when the month went
// off the rails, but it does not veto trades by itself.
package circuitbreaker

// Result reports the drawdown check for one day.
type Result struct {
	Triggered bool    `json:"triggered"`
	Drawdown  float64 `json:"drawdown"`
}

// Check computes the maximum running-peak drawdown over the month-to-date
// total values, oldest first, and compares it against the limit (both as
// fractions). Fewer than two observations cannot draw down.
func Check(totalValues []float64, limit float64) Result {
	if len(totalValues) < 2 {
		return Result{}
	}

	peak := totalValues[0]
	maxDrawdown := 0.0
	for _, v := range totalValues[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	return Result{
		Triggered: maxDrawdown >= limit,
		Drawdown:  maxDrawdown,
	}
}

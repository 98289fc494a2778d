package performance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func series(values ...float64) []Daily {
	rows := make([]Daily, len(values))
	for i, v := range values {
		rows[i] = Daily{Date: "2024-01-01", TotalValue: v}
	}
	return rows
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil, 0.05)

	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.TotalDays)
	assert.Empty(t, m.DailyReturns)
}

func TestComputeSingleRow(t *testing.T) {
	m := Compute(series(1000), 0.05)

	assert.Equal(t, 1, m.TotalDays)
	assert.Empty(t, m.DailyReturns)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.TotalReturn)
}

func TestComputeSharpe(t *testing.T) {
	// Returns are +10% then +20%: mean 15, sample std 10/sqrt(2).
	m := Compute(series(1000, 1100, 1320), 0.05)

	assert.Equal(t, []float64{10, 20}, roundReturns(m.DailyReturns))
	want := (15.0*252 - 0.05) / (10.0 / math.Sqrt2 * math.Sqrt(252))
	assert.InDelta(t, want, m.SharpeRatio, 1e-9)
	assert.InDelta(t, 32.0, m.TotalReturn, 1e-9)
}

func TestComputeSharpeZeroWhenFlat(t *testing.T) {
	m := Compute(series(1000, 1000, 1000), 0.05)

	assert.Len(t, m.DailyReturns, 2)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.TotalReturn)
}

func TestComputeMaxDrawdown(t *testing.T) {
	m := Compute(series(1000, 1200, 900, 1100), 0.05)

	assert.InDelta(t, 25.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 10.0, m.TotalReturn, 1e-9)
	assert.Equal(t, 4, m.TotalDays)
}

func TestComputeSkipsNonPositivePrior(t *testing.T) {
	// The zero row yields one return into it but none out of it.
	m := Compute(series(1000, 0, 500), 0.05)

	assert.Equal(t, []float64{-100}, m.DailyReturns)
	assert.Zero(t, m.SharpeRatio)
	assert.InDelta(t, 100.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, -50.0, m.TotalReturn, 1e-9)
}

func roundReturns(returns []float64) []float64 {
	rounded := make([]float64, len(returns))
	for i, r := range returns {
		rounded[i] = math.Round(r*1e9) / 1e9
	}
	return rounded
}

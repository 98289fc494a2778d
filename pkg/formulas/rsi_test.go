package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateRSI(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		period   int
		expected float64
		delta    float64
	}{
		{
			name:     "insufficient history returns neutral",
			closes:   []float64{100, 101, 102},
			period:   14,
			expected: 50.0,
			delta:    0,
		},
		{
			name:     "empty series returns neutral",
			closes:   nil,
			period:   14,
			expected: 50.0,
			delta:    0,
		},
		{
			name:     "all gains returns 100",
			closes:   []float64{100, 101, 102, 103, 104, 105},
			period:   5,
			expected: 100.0,
			delta:    0,
		},
		{
			name:     "all losses returns 0",
			closes:   []float64{105, 104, 103, 102, 101, 100},
			period:   5,
			expected: 0.0,
			delta:    1e-9,
		},
		{
			// Gains 2+2, losses 1+1 over the window: RS=2, RSI=66.67
			name:     "balanced window",
			closes:   []float64{100, 102, 101, 103, 102},
			period:   4,
			expected: 66.6667,
			delta:    0.01,
		},
		{
			name:     "flat series has no losses",
			closes:   []float64{100, 100, 100, 100, 100, 100},
			period:   5,
			expected: 100.0,
			delta:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateRSI(tt.closes, tt.period)
			assert.InDelta(t, tt.expected, got, tt.delta+1e-9)
		})
	}
}

func TestCalculateRSI_MonotonicSeries(t *testing.T) {
	// A long strictly rising series must saturate near 100 and a strictly
	// falling one near 0.
	rising := make([]float64, 60)
	falling := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
	}

	assert.InDelta(t, 100.0, CalculateRSI(rising, 14), 1e-9)
	assert.InDelta(t, 0.0, CalculateRSI(falling, 14), 1e-9)
}

package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{
			name:     "empty slice",
			data:     []float64{},
			expected: 0,
		},
		{
			name:     "single value",
			data:     []float64{5.0},
			expected: 5.0,
		},
		{
			name:     "mixed values",
			data:     []float64{1.0, 2.0, 3.0, 4.0},
			expected: 2.5,
		},
		{
			name:     "negative values",
			data:     []float64{-2.0, 2.0},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Mean(tt.data), 1e-9)
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{
			name:     "fewer than two values",
			data:     []float64{1.0},
			expected: 0,
		},
		{
			name:     "constant series",
			data:     []float64{3.0, 3.0, 3.0},
			expected: 0,
		},
		{
			// Sample stddev of 2,4,4,4,5,5,7,9 is sqrt(32/7)
			name:     "known sample deviation",
			data:     []float64{2, 4, 4, 4, 5, 5, 7, 9},
			expected: 2.13808993,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, StdDev(tt.data), 1e-6)
		})
	}
}

func TestPopStdDev(t *testing.T) {
	// Population stddev of 2,4,4,4,5,5,7,9 is exactly 2
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, PopStdDev(data), 1e-9)

	assert.Equal(t, 0.0, PopStdDev(nil))
}

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		expected []float64
	}{
		{
			name:     "too short",
			prices:   []float64{100.0},
			expected: []float64{},
		},
		{
			name:     "simple gains",
			prices:   []float64{100.0, 110.0, 121.0},
			expected: []float64{0.10, 0.10},
		},
		{
			name:     "zero previous price is skipped",
			prices:   []float64{0.0, 50.0},
			expected: []float64{0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReturns(tt.prices)
			assert.Equal(t, len(tt.expected), len(got))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], got[i], 1e-9)
			}
		})
	}
}

func TestLinearTrend(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		slope, r2 := LinearTrend([]float64{1, 3, 5, 7, 9})
		assert.InDelta(t, 2.0, slope, 1e-9)
		assert.InDelta(t, 1.0, r2, 1e-9)
	})

	t.Run("flat series", func(t *testing.T) {
		slope, r2 := LinearTrend([]float64{4, 4, 4, 4})
		assert.InDelta(t, 0.0, slope, 1e-9)
		assert.Equal(t, 0.0, r2)
	})

	t.Run("too short", func(t *testing.T) {
		slope, r2 := LinearTrend([]float64{1})
		assert.Equal(t, 0.0, slope)
		assert.Equal(t, 0.0, r2)
	})
}

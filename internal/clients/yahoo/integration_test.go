//go:build integration
// +build integration

package yahoo

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DailyHistory(t *testing.T) {
	client := NewClient(zerolog.Nop())

	t.Run("valid symbol", func(t *testing.T) {
		bars, err := client.DailyHistory("SPY", "1mo")
		require.NoError(t, err)
		assert.NotEmpty(t, bars)

		last := bars[len(bars)-1]
		assert.Greater(t, last.Close, 0.0)
		assert.Greater(t, last.Open, 0.0)
		assert.False(t, last.Date.IsZero())
	})

	t.Run("invalid symbol", func(t *testing.T) {
		_, err := client.DailyHistory("INVALID_SYMBOL_XYZ", "1mo")
		assert.Error(t, err)
	})
}

func TestClient_BatchDailyHistory(t *testing.T) {
	client := NewClient(zerolog.Nop())

	result, err := client.BatchDailyHistory([]string{"SPY", "QQQ"}, "5d")
	require.NoError(t, err)

	assert.NotEmpty(t, result["SPY"])
	assert.NotEmpty(t, result["QQQ"])
}

// Package allocation splits a day's buy budget across assets from their
// ranking scores. Three or more positive scores get weight bands that force
// diversification; one or two positive scores collapse to fixed splits.
package allocation

import (
	"sort"

	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// Diversify distributes total dollars over the scored assets. Every input
// symbol appears in the result; assets with non-positive scores get zero.
// The returned amounts always sum to total (or to zero when nothing
// scores positive).
func Diversify(scores map[string]float64, total float64, cfg *strategyconfig.TradingConfig) map[string]float64 {
	out := make(map[string]float64, len(scores))

	floored := make(map[string]float64, len(scores))
	sum := 0.0
	positives := 0
	for symbol, score := range scores {
		out[symbol] = 0
		if score <= 0 {
			floored[symbol] = 0
			continue
		}
		floored[symbol] = score
		sum += score
		positives++
	}

	if sum == 0 || total <= 0 {
		return out
	}

	ranked := rankSymbols(scores)

	switch {
	case positives >= 3:
		weights := make(map[string]float64, len(scores))
		for symbol, score := range floored {
			weights[symbol] = score / sum
		}

		// Band the top three so no single asset dominates and the third
		// still gets a real stake
		weights[ranked[0]] = clamp(weights[ranked[0]], cfg.DiversifyTopAssetMin, cfg.DiversifyTopAssetMax)
		weights[ranked[1]] = clamp(weights[ranked[1]], cfg.DiversifySecondAssetMin, cfg.DiversifySecondAssetMax)
		weights[ranked[2]] = clamp(weights[ranked[2]], cfg.DiversifyThirdAssetMin, cfg.DiversifyThirdAssetMax)

		allocated := 0.0
		for symbol, w := range weights {
			out[symbol] = w * total
			allocated += out[symbol]
		}

		// Banding broke the unit sum; rescale back onto the budget
		scale := total / allocated
		for symbol := range out {
			out[symbol] *= scale
		}

	case positives == 2:
		out[ranked[0]] = total * cfg.TwoAssetTop
		out[ranked[1]] = total * cfg.TwoAssetSecond

	default:
		out[ranked[0]] = total
	}

	return out
}

// Helper functions

// rankSymbols orders symbols by score descending, symbol ascending for
// deterministic ties.
func rankSymbols(scores map[string]float64) []string {
	symbols := make([]string, 0, len(scores))
	for symbol := range scores {
		symbols = append(symbols, symbol)
	}

	sort.Slice(symbols, func(i, j int) bool {
		if scores[symbols[i]] != scores[symbols[j]] {
			return scores[symbols[i]] > scores[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	return symbols
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

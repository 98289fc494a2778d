package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
)

const dateLayout = "2006-01-02"

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "signal-engine",
		"version": "1.0.0",
	})
}

// handleSystemStats reports host and database health.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Stats())
}

// handleLatestPrices returns the newest stored bar for every symbol.
func (s *Server) handleLatestPrices(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.markets.Symbols()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list symbols: %v", err))
		return
	}

	prices := make([]market.Bar, 0, len(symbols))
	for _, symbol := range symbols {
		bar, err := s.markets.LatestBar(symbol)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load bar for %s: %v", symbol, err))
			return
		}
		if bar != nil {
			prices = append(prices, *bar)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": prices,
		"count":  len(prices),
	})
}

// handlePriceHistory returns recent daily bars for one symbol.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	days := queryInt(r, "days", 30)

	now := time.Now()
	from := now.AddDate(0, 0, -days).Format(dateLayout)
	before := now.AddDate(0, 0, 1).Format(dateLayout)

	bars, err := s.markets.BarsBetween(symbol, from, before)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history for %s: %v", symbol, err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"days":   days,
		"bars":   bars,
		"count":  len(bars),
	})
}

// handleLatestSignal returns the most recent daily signal.
func (s *Server) handleLatestSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := s.signals.Latest()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load signal: %v", err))
		return
	}
	if sig == nil {
		s.writeError(w, http.StatusNotFound, "no signals generated yet")
		return
	}

	s.writeJSON(w, http.StatusOK, sig)
}

// handleSignalHistory returns signals from the last N days.
func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	from := time.Now().AddDate(0, 0, -days).Format(dateLayout)

	signals, err := s.signals.ListSince(from)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load signals: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"count":   len(signals),
	})
}

// positionView is a position enriched with its latest valuation.
type positionView struct {
	Symbol      string   `json:"symbol"`
	Quantity    float64  `json:"quantity"`
	AvgCost     float64  `json:"avg_cost"`
	LastClose   *float64 `json:"last_close,omitempty"`
	MarketValue float64  `json:"market_value"`
	PnL         float64  `json:"pnl"`
	PnLPct      float64  `json:"pnl_pct"`
}

// handlePortfolio returns current positions valued at the latest close.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format(dateLayout)

	cash, err := s.portfolio.CashBalance()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load cash balance: %v", err))
		return
	}

	positions, err := s.portfolio.Positions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load positions: %v", err))
		return
	}

	views := make([]positionView, 0, len(positions))
	holdingsValue := 0.0
	for _, pos := range positions {
		view := positionView{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
		}

		closePrice, err := s.markets.CloseAsOf(pos.Symbol, today)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to price %s: %v", pos.Symbol, err))
			return
		}

		// Positions without a stored price are carried at cost.
		price := pos.AvgCost
		if closePrice != nil {
			price = *closePrice
			view.LastClose = closePrice
		}

		view.MarketValue = pos.Quantity * price
		costBasis := pos.Quantity * pos.AvgCost
		view.PnL = view.MarketValue - costBasis
		if costBasis > 0 {
			view.PnLPct = view.PnL / costBasis * 100
		}

		holdingsValue += view.MarketValue
		views = append(views, view)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":          today,
		"cash":           cash,
		"positions":      views,
		"holdings_value": holdingsValue,
		"total_value":    holdingsValue + cash,
	})
}

// handleTradeHistory returns trades executed in the last N days.
func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	now := time.Now()
	from := now.AddDate(0, 0, -days).Format(dateLayout)
	through := now.Format(dateLayout)

	trades, err := s.trades.ListBetween(from, through)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trades: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// handlePerformance returns the daily series for the last N days with
// summary metrics computed over that window.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	now := time.Now()
	from := now.AddDate(0, 0, -days).Format(dateLayout)
	today := now.Format(dateLayout)

	series, err := s.metrics.Series(from, today)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load performance series: %v", err))
		return
	}

	constraints, err := s.constraints.GetActive(today)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load constraints: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"series":  series,
		"count":   len(series),
		"metrics": performance.Compute(series, constraints.RiskFreeRate),
	})
}

// handleActiveConfig returns the trading config active today.
func (s *Server) handleActiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.GetActive(time.Now().Format(dateLayout))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load active config: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, cfg)
}

// handleConfigVersions lists config versions, newest first.
func (s *Server) handleConfigVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.configs.ListVersions(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list config versions: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

// handleTuningRuns lists recent tuning runs.
func (s *Server) handleTuningRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.tuningRuns.Recent(20)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list tuning runs: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleRunTuning triggers a tuning cycle immediately.
func (s *Server) handleRunTuning(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.tuner.RunMonthlyTuning(time.Now().Format(dateLayout))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("tuning run failed: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

// handleRunJob triggers a scheduled job by name.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if !s.scheduler.HasJob(name) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown job %q", name))
		return
	}

	if err := s.scheduler.RunNow(name); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("job %s failed: %v", name, err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "completed",
		"job":    name,
	})
}

// Helper functions

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// queryInt reads a positive integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

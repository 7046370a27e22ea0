package backtest

import (
	"time"
)

// Trade is one completed round-trip, immutable once appended to a result.
type Trade struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // "long" or "short"
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	PnL           float64   `json:"pnl"`
	PnLPct        float64   `json:"pnl_pct"`
	Commission    float64   `json:"commission"`
	HoldingPeriod int       `json:"holding_period"` // bars between entry and exit
}

// EquityPoint is one bar of the marked-to-market equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// PositionState is the simulator's cash/position snapshot after one bar.
type PositionState struct {
	Timestamp time.Time `json:"timestamp"`
	Shares    float64   `json:"shares"` // positive long, negative short, zero flat
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
}

// Result is the complete outcome of one simulation run: the equity curve,
// the per-bar position history, the trade ledger and the derived metrics.
type Result struct {
	Symbol       string             `json:"symbol"`
	StartBalance float64            `json:"start_balance"`
	EndBalance   float64            `json:"end_balance"`
	EquityCurve  []EquityPoint      `json:"equity_curve"`
	Positions    []PositionState    `json:"positions"`
	Trades       []Trade            `json:"trades"`
	Metrics      PerformanceMetrics `json:"metrics"`
}

// Returns computes the bar-over-bar return series of the equity curve.
func (r *Result) Returns() []float64 {
	if len(r.EquityCurve) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(r.EquityCurve)-1)
	for i := 1; i < len(r.EquityCurve); i++ {
		prev := r.EquityCurve[i-1].Equity
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, r.EquityCurve[i].Equity/prev-1)
	}
	return rets
}

// DrawdownSeries computes the per-bar drawdown from the running peak as
// non-positive fractions.
func (r *Result) DrawdownSeries() []float64 {
	dd := make([]float64, len(r.EquityCurve))
	peak := 0.0
	for i, point := range r.EquityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			dd[i] = (point.Equity - peak) / peak
		}
	}
	return dd
}

// MonthlyReturns aggregates the equity curve into calendar-month returns,
// keyed "2006-01". Months are compounded from the last equity of the prior
// month to the last equity of the month.
func (r *Result) MonthlyReturns() map[string]float64 {
	monthly := make(map[string]float64)
	if len(r.EquityCurve) == 0 {
		return monthly
	}

	lastEquity := r.EquityCurve[0].Equity
	currentKey := r.EquityCurve[0].Timestamp.Format("2006-01")
	monthStart := lastEquity

	for _, point := range r.EquityCurve[1:] {
		key := point.Timestamp.Format("2006-01")
		if key != currentKey {
			if monthStart > 0 {
				monthly[currentKey] = lastEquity/monthStart - 1
			}
			currentKey = key
			monthStart = lastEquity
		}
		lastEquity = point.Equity
	}
	if monthStart > 0 {
		monthly[currentKey] = lastEquity/monthStart - 1
	}
	return monthly
}

// TradeReturns extracts the per-trade fractional returns of the ledger, the
// input to Monte Carlo resampling.
func (r *Result) TradeReturns() []float64 {
	rets := make([]float64, len(r.Trades))
	for i, trade := range r.Trades {
		rets[i] = trade.PnLPct
	}
	return rets
}

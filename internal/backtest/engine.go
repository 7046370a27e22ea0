package backtest

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// Config holds the simulation parameters for one run. Constructed once,
// immutable while the run is in flight.
type Config struct {
	Symbol            string  `json:"symbol" yaml:"symbol"`
	InitialCapital    float64 `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate    float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate      float64 `json:"slippage_rate" yaml:"slippage_rate"`
	MarginRequirement float64 `json:"margin_requirement" yaml:"margin_requirement"`
	AllowShorting     bool    `json:"allow_shorting" yaml:"allow_shorting"`
	FractionalShares  bool    `json:"fractional_shares" yaml:"fractional_shares"`
	RiskFreeRate      float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

// Validate rejects malformed parameters before any simulation work begins.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("commission rate must not be negative, got %.6f", c.CommissionRate)
	}
	if c.SlippageRate < 0 {
		return fmt.Errorf("slippage rate must not be negative, got %.6f", c.SlippageRate)
	}
	if c.MarginRequirement < 0 {
		return fmt.Errorf("margin requirement must not be negative, got %.4f", c.MarginRequirement)
	}
	return nil
}

// tradeStatsRecorder is implemented by sizers that learn from realized
// trades (Kelly). The engine feeds every closed trade's P&L back.
type tradeStatsRecorder interface {
	UpdateStats(pnl float64)
}

// returnObserver is implemented by sizers that track realized volatility
// (volatility targeting). The engine feeds every bar return forward.
type returnObserver interface {
	AddReturn(ret float64)
}

// Engine converts a bar series and an aligned signal series into cash and
// position state over time, charging commission on every leg and slippage on
// signal changes, and emits a trade ledger plus an equity curve.
type Engine struct {
	config Config
	sizer  sizing.Sizer
}

// NewEngine creates a simulation engine with the given sizer.
func NewEngine(config Config, sizer sizing.Sizer) *Engine {
	return &Engine{config: config, sizer: sizer}
}

// Run executes the bar-by-bar simulation. Bars are processed strictly in
// order because each bar's state depends on the previous one; the run is
// deterministic for identical inputs.
func (e *Engine) Run(bars []types.OHLCV, signals []float64) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := types.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("invalid bar series: %w", err)
	}
	if len(signals) != len(bars) {
		return nil, fmt.Errorf("signal series length %d does not match %d bars", len(signals), len(bars))
	}

	result := &Result{
		Symbol:       e.config.Symbol,
		StartBalance: e.config.InitialCapital,
		EquityCurve:  make([]EquityPoint, 0, len(bars)),
		Positions:    make([]PositionState, 0, len(bars)),
		Trades:       make([]Trade, 0),
	}

	cash := e.config.InitialCapital
	shares := 0.0
	entryPrice := 0.0
	entryIndex := 0
	entryCommission := 0.0

	if len(bars) > 0 {
		// no trade can execute on the first bar: equity equals initial
		// capital by definition
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: bars[0].Timestamp, Equity: cash})
		result.Positions = append(result.Positions, PositionState{Timestamp: bars[0].Timestamp, Shares: 0, Cash: cash, Equity: cash})
	}

	for i := 1; i < len(bars); i++ {
		price := bars[i].Close

		if observer, ok := e.sizer.(returnObserver); ok {
			prev := bars[i-1].Close
			if prev > 0 {
				observer.AddReturn(price/prev - 1)
			}
		}

		if signals[i] != signals[i-1] {
			// slippage is charged directionally on the signal change:
			// buying pays up, selling pays down
			execPrice := price * (1 + e.config.SlippageRate*sign(signals[i]-signals[i-1]))

			if shares != 0 {
				cash, shares = e.closePosition(result, bars, i, cash, shares, entryPrice, entryIndex, entryCommission, execPrice)
			}

			if signals[i] != 0 {
				isShort := signals[i] < 0
				if !isShort || e.config.AllowShorting {
					commission, qty := e.openPosition(cash, execPrice, signals[i])
					if qty != 0 {
						cash -= qty*execPrice + commission
						shares = qty
						entryPrice = execPrice
						entryIndex = i
						entryCommission = commission
					}
				}
			}
		}

		equity := cash + shares*price
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: bars[i].Timestamp, Equity: equity})
		result.Positions = append(result.Positions, PositionState{Timestamp: bars[i].Timestamp, Shares: shares, Cash: cash, Equity: equity})
	}

	if len(result.EquityCurve) > 0 {
		result.EndBalance = result.EquityCurve[len(result.EquityCurve)-1].Equity
	} else {
		result.EndBalance = e.config.InitialCapital
	}

	result.Metrics = CalculateMetrics(result.Returns(), result.EquityCurve, result.Trades, nil, e.config.RiskFreeRate)
	return result, nil
}

// closePosition realizes the open position at execPrice, appends the trade
// record and returns the updated cash and flat share count.
func (e *Engine) closePosition(result *Result, bars []types.OHLCV, i int, cash, shares, entryPrice float64, entryIndex int, entryCommission, execPrice float64) (float64, float64) {
	qty := math.Abs(shares)
	commission := qty * execPrice * e.config.CommissionRate

	var pnl float64
	side := "long"
	if shares > 0 {
		pnl = (execPrice - entryPrice) * shares
	} else {
		side = "short"
		pnl = (entryPrice - execPrice) * qty
	}

	// settle: buying back a short spends cash, selling a long raises it
	cash += shares*execPrice - commission

	trade := Trade{
		Symbol:        e.config.Symbol,
		Side:          side,
		EntryTime:     bars[entryIndex].Timestamp,
		ExitTime:      bars[i].Timestamp,
		EntryPrice:    entryPrice,
		ExitPrice:     execPrice,
		Quantity:      qty,
		PnL:           pnl - commission - entryCommission,
		Commission:    commission + entryCommission,
		HoldingPeriod: i - entryIndex,
	}
	if entryPrice > 0 && qty > 0 {
		trade.PnLPct = trade.PnL / (entryPrice * qty)
	}
	result.Trades = append(result.Trades, trade)

	if recorder, ok := e.sizer.(tradeStatsRecorder); ok {
		recorder.UpdateStats(trade.PnL)
	}
	return cash, 0
}

// openPosition asks the sizer for a size from available cash with |signal|
// as conviction and applies the fractional-share and margin rules. The
// returned quantity is signed: negative for shorts.
func (e *Engine) openPosition(cash, execPrice, signal float64) (commission, signedQty float64) {
	size := e.sizer.CalculateSize(cash, execPrice, math.Abs(signal))
	if size.Type == sizing.PositionRejected || size.Shares == 0 {
		return 0, 0
	}

	qty := size.Shares
	if signal < 0 && e.config.MarginRequirement > 0 {
		// short exposure is collateral-bound
		maxQty := cash / e.config.MarginRequirement / execPrice
		if qty > maxQty {
			qty = maxQty
		}
	}
	if !e.config.FractionalShares {
		qty = math.Trunc(qty)
	}
	if qty == 0 {
		return 0, 0
	}

	commission = qty * execPrice * e.config.CommissionRate
	if signal < 0 {
		qty = -qty
	}
	return commission, qty
}

// sign returns -1, 0 or +1.
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

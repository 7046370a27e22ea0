package risk

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// State is the trading-permission state of the manager.
type State string

const (
	StateActive State = "active"
	StateHalted State = "halted"
)

// Manager tracks portfolio state (open positions, equity history, halt
// status) and evaluates whether a proposed trade is allowed, reduced or
// rejected. All mutating entry points are serialized behind a mutex: two
// concurrent callers must not both see room for the last position slot.
type Manager struct {
	mu sync.Mutex

	limits Limits

	positions map[string]*Position

	initialCapital float64
	currentEquity  float64
	peakEquity     float64
	dayStartEquity float64

	state      State
	haltedAt   time.Time
	haltReason string

	tradesToday  int
	currentDay   time.Time
}

// NewManager creates a risk manager for a session starting with the given
// capital.
func NewManager(limits Limits, initialCapital float64) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk limits: %w", err)
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %.2f", initialCapital)
	}
	return &Manager{
		limits:         limits,
		positions:      make(map[string]*Position),
		initialCapital: initialCapital,
		currentEquity:  initialCapital,
		peakEquity:     initialCapital,
		dayStartEquity: initialCapital,
	}, nil
}

// State returns the current permission state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UpdateEquity records the portfolio equity at the given time, tracking the
// running peak and rolling the daily P&L anchor at local-date changes.
func (m *Manager) UpdateEquity(equity float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDay(now)
	m.currentEquity = equity
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
}

// rollDay resets the daily counters when the local date changes. Callers
// must hold the mutex.
func (m *Manager) rollDay(now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(m.currentDay) {
		m.currentDay = day
		m.tradesToday = 0
		m.dayStartEquity = m.currentEquity
	}
}

// maybeResetHalt moves the manager back to Active once the cooldown period
// has elapsed. The drawdown peak is rebased to current equity so the session
// restarts from a clean slate instead of re-halting on the stale peak.
// Callers must hold the mutex.
func (m *Manager) maybeResetHalt(now time.Time) {
	if m.state != StateHalted {
		return
	}
	cooldown := time.Duration(m.limits.CooldownDays) * 24 * time.Hour
	if now.Sub(m.haltedAt) >= cooldown {
		m.state = StateActive
		m.haltReason = ""
		m.peakEquity = m.currentEquity
		m.dayStartEquity = m.currentEquity
	}
}

// halt transitions to Halted and starts the cooldown clock. Callers must
// hold the mutex.
func (m *Manager) halt(reason string, now time.Time) {
	m.state = StateHalted
	m.haltedAt = now
	m.haltReason = reason
}

// CheckAll runs the full rule battery for a proposed trade and returns the
// single most restrictive result. While halted every call short-circuits to
// HaltTrading until the cooldown expires.
func (m *Manager) CheckAll(proposal TradeProposal, now time.Time) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDay(now)
	m.maybeResetHalt(now)
	if m.state == StateHalted {
		return CheckResult{Action: HaltTrading, Reason: "trading halted: " + m.haltReason}
	}

	results := []CheckResult{
		m.checkDrawdown(now),
		m.checkDailyLoss(now),
		m.checkPositionSize(proposal),
		m.checkSectorExposure(proposal),
		m.checkLeverage(proposal),
		m.checkTradeFrequency(),
	}
	return mostRestrictive(results)
}

// CheckDrawdownLimits evaluates only the drawdown rule. Exposed separately
// because backtest and live runners consult it between bars, not just on
// trade proposals.
func (m *Manager) CheckDrawdownLimits(now time.Time) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetHalt(now)
	if m.state == StateHalted {
		return CheckResult{Action: HaltTrading, Reason: "trading halted: " + m.haltReason}
	}
	return m.checkDrawdown(now)
}

func (m *Manager) checkDrawdown(now time.Time) CheckResult {
	if m.peakEquity <= 0 {
		return allowed()
	}
	drawdown := (m.peakEquity - m.currentEquity) / m.peakEquity
	details := map[string]float64{"drawdown": drawdown, "limit": m.limits.MaxDrawdown}

	if drawdown >= m.limits.MaxDrawdown {
		reason := fmt.Sprintf("drawdown %.1f%% breached limit %.1f%%", drawdown*100, m.limits.MaxDrawdown*100)
		m.halt(reason, now)
		return CheckResult{Action: HaltTrading, Reason: reason, Details: details}
	}
	if drawdown >= 0.8*m.limits.MaxDrawdown {
		return CheckResult{
			Action:  Reduce,
			Reason:  fmt.Sprintf("drawdown %.1f%% approaching limit %.1f%%", drawdown*100, m.limits.MaxDrawdown*100),
			Details: details,
		}
	}
	return allowed()
}

func (m *Manager) checkDailyLoss(now time.Time) CheckResult {
	if m.dayStartEquity <= 0 {
		return allowed()
	}
	dailyPnL := (m.currentEquity - m.dayStartEquity) / m.dayStartEquity
	if dailyPnL <= -m.limits.MaxDailyLoss {
		reason := fmt.Sprintf("daily loss %.1f%% breached limit %.1f%%", -dailyPnL*100, m.limits.MaxDailyLoss*100)
		m.halt(reason, now)
		return CheckResult{
			Action:  HaltTrading,
			Reason:  reason,
			Details: map[string]float64{"daily_pnl": dailyPnL, "limit": m.limits.MaxDailyLoss},
		}
	}
	return allowed()
}

func (m *Manager) checkPositionSize(proposal TradeProposal) CheckResult {
	if m.currentEquity <= 0 {
		return CheckResult{Action: Reject, Reason: "no capital available"}
	}
	if _, held := m.positions[proposal.Symbol]; !held && len(m.positions) >= m.limits.MaxPositions {
		return CheckResult{
			Action: Reject,
			Reason: fmt.Sprintf("position count at limit %d, cannot open %s", m.limits.MaxPositions, proposal.Symbol),
		}
	}
	fraction := proposal.Value / m.currentEquity
	if fraction > m.limits.MaxPositionSize {
		return CheckResult{
			Action:  Reduce,
			Reason:  fmt.Sprintf("proposed size %.1f%% of capital over limit %.1f%%", fraction*100, m.limits.MaxPositionSize*100),
			Details: map[string]float64{"fraction": fraction, "limit": m.limits.MaxPositionSize},
		}
	}
	return allowed()
}

func (m *Manager) checkSectorExposure(proposal TradeProposal) CheckResult {
	if proposal.Sector == "" || m.currentEquity <= 0 {
		return allowed()
	}
	exposure := proposal.Value
	for _, pos := range m.positions {
		if pos.Sector == proposal.Sector && pos.Symbol != proposal.Symbol {
			exposure += pos.MarketValue()
		}
	}
	fraction := exposure / m.currentEquity
	if fraction > m.limits.MaxSectorExposure {
		return CheckResult{
			Action:  Reduce,
			Reason:  fmt.Sprintf("sector %s exposure %.1f%% over limit %.1f%%", proposal.Sector, fraction*100, m.limits.MaxSectorExposure*100),
			Details: map[string]float64{"fraction": fraction, "limit": m.limits.MaxSectorExposure},
		}
	}
	return allowed()
}

func (m *Manager) checkLeverage(proposal TradeProposal) CheckResult {
	if m.currentEquity <= 0 {
		return allowed()
	}
	gross := proposal.Value
	for _, pos := range m.positions {
		gross += pos.MarketValue()
	}
	leverage := gross / m.currentEquity
	if leverage > m.limits.MaxLeverage {
		return CheckResult{
			Action:  Reduce,
			Reason:  fmt.Sprintf("gross leverage %.2fx over limit %.2fx", leverage, m.limits.MaxLeverage),
			Details: map[string]float64{"leverage": leverage, "limit": m.limits.MaxLeverage},
		}
	}
	return allowed()
}

func (m *Manager) checkTradeFrequency() CheckResult {
	if m.tradesToday >= m.limits.MaxTradesPerDay {
		return CheckResult{
			Action: Reject,
			Reason: fmt.Sprintf("daily trade limit %d reached", m.limits.MaxTradesPerDay),
		}
	}
	return allowed()
}

// CheckCorrelation evaluates a candidate asset's return series against every
// held asset. It is a separate entry point, not part of CheckAll, because it
// needs return history the per-trade path does not carry.
func (m *Manager) CheckCorrelation(symbol string, candidate []float64, returnsBySymbol map[string][]float64) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(candidate) < 2 {
		return allowed()
	}

	held := make([]string, 0, len(m.positions))
	for s := range m.positions {
		held = append(held, s)
	}
	sort.Strings(held)

	for _, heldSymbol := range held {
		heldReturns, ok := returnsBySymbol[heldSymbol]
		if !ok || len(heldReturns) < 2 {
			continue
		}
		n := len(candidate)
		if len(heldReturns) < n {
			n = len(heldReturns)
		}
		corr, err := stats.Correlation(candidate[:n], heldReturns[:n])
		if err != nil {
			continue
		}
		if corr > m.limits.MaxCorrelation {
			return CheckResult{
				Action:  Reject,
				Reason:  fmt.Sprintf("%s correlation %.2f with held %s over limit %.2f", symbol, corr, heldSymbol, m.limits.MaxCorrelation),
				Details: map[string]float64{"correlation": corr, "limit": m.limits.MaxCorrelation},
			}
		}
	}
	return allowed()
}

// RecordTrade counts one executed trade against the daily frequency limit.
func (m *Manager) RecordTrade(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDay(now)
	m.tradesToday++
}

// AddPosition registers a newly opened position. Malformed input is the only
// error path; risk breaches never surface here.
func (m *Manager) AddPosition(pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos.Quantity <= 0 {
		return fmt.Errorf("position quantity must be positive, got %.4f", pos.Quantity)
	}
	if pos.Symbol == "" {
		return fmt.Errorf("position symbol must not be empty")
	}
	if _, exists := m.positions[pos.Symbol]; exists {
		return fmt.Errorf("position for %s already open", pos.Symbol)
	}

	if pos.CurrentPrice == 0 {
		pos.CurrentPrice = pos.EntryPrice
	}
	if pos.PeakPrice == 0 {
		pos.PeakPrice = pos.EntryPrice
	}
	if pos.StopLoss == 0 {
		pos.StopLoss = m.initialStop(&pos, 0)
	}

	m.positions[pos.Symbol] = &pos
	return nil
}

// UpdatePosition marks a position to the latest price, advancing the peak
// and recomputing trailing stops. Unknown symbols are ignored.
func (m *Manager) UpdatePosition(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	switch pos.Side {
	case SideLong:
		if price > pos.PeakPrice {
			pos.PeakPrice = price
		}
	case SideShort:
		if price < pos.PeakPrice {
			pos.PeakPrice = price
		}
	}
	if m.limits.StopPolicy == StopTrailing {
		pos.StopLoss = m.trailingStop(pos)
	}
}

// ClosePosition removes a position from the book and returns its final
// state. Positions are removed on close, never left dangling.
func (m *Manager) ClosePosition(symbol string) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return Position{}, fmt.Errorf("no open position for %s", symbol)
	}
	delete(m.positions, symbol)
	return *pos, nil
}

// OpenPositions returns a snapshot of the book, sorted by symbol.
func (m *Manager) OpenPositions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

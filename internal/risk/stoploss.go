package risk

import "sort"

// initialStop computes the stop price for a fresh position under the
// configured policy. atr may be zero when the policy does not need it, in
// which case the ATR policy falls back to the fixed percentage. Callers must
// hold the mutex.
func (m *Manager) initialStop(pos *Position, atr float64) float64 {
	distance := pos.EntryPrice * m.limits.StopLossPct
	switch m.limits.StopPolicy {
	case StopATR:
		if atr > 0 {
			distance = atr * m.limits.StopATRMultiplier
		}
	case StopTrailing:
		distance = pos.EntryPrice * m.limits.TrailingPct
	}

	if pos.Side == SideShort {
		return pos.EntryPrice + distance
	}
	return pos.EntryPrice - distance
}

// trailingStop recomputes a trailing stop from the peak price. Stops only
// ever move in the position's favor: a long stop ratchets up, a short stop
// ratchets down, neither ever loosens. Callers must hold the mutex.
func (m *Manager) trailingStop(pos *Position) float64 {
	if pos.Side == SideShort {
		candidate := pos.PeakPrice * (1 + m.limits.TrailingPct)
		if pos.StopLoss == 0 || candidate < pos.StopLoss {
			return candidate
		}
		return pos.StopLoss
	}
	candidate := pos.PeakPrice * (1 - m.limits.TrailingPct)
	if candidate > pos.StopLoss {
		return candidate
	}
	return pos.StopLoss
}

// SetStopLoss installs a stop computed with an explicit ATR, for callers
// running the ATR policy with their own volatility estimate.
func (m *Manager) SetStopLoss(symbol string, atr float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return
	}
	pos.StopLoss = m.initialStop(pos, atr)
}

// CheckStopLosses scans all open positions and returns the symbols whose
// current price has crossed their stop, sorted for deterministic output. The
// manager never force-closes; acting on the list is the caller's job.
func (m *Manager) CheckStopLosses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var crossed []string
	for symbol, pos := range m.positions {
		if pos.StopLoss == 0 {
			continue
		}
		switch pos.Side {
		case SideLong:
			if pos.CurrentPrice <= pos.StopLoss {
				crossed = append(crossed, symbol)
			}
		case SideShort:
			if pos.CurrentPrice >= pos.StopLoss {
				crossed = append(crossed, symbol)
			}
		}
	}
	sort.Strings(crossed)
	return crossed
}

package risk

import "time"

// Action is the outcome of a risk rule, ordered from least to most
// restrictive. CheckAll returns the most restrictive action of the battery.
type Action int

const (
	Allow Action = iota
	Reduce
	Reject
	CloseAll
	HaltTrading
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Reduce:
		return "reduce"
	case Reject:
		return "reject"
	case CloseAll:
		return "close_all"
	case HaltTrading:
		return "halt_trading"
	default:
		return "unknown"
	}
}

// CheckResult is the typed outcome of one risk check. Risk breaches are
// results, never errors; callers decide what to do with them.
type CheckResult struct {
	Action  Action
	Reason  string
	Details map[string]float64
}

// allowed is the neutral result.
func allowed() CheckResult {
	return CheckResult{Action: Allow}
}

// mostRestrictive returns the result with the highest-priority action,
// preferring the earlier result on ties so rule order stays deterministic.
func mostRestrictive(results []CheckResult) CheckResult {
	final := allowed()
	for _, r := range results {
		if r.Action > final.Action {
			final = r
		}
	}
	return final
}

// Side marks the direction of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is one open exposure tracked by the risk manager. PeakPrice is
// the most favorable price seen since entry (highest for longs, lowest for
// shorts) and drives trailing stops.
type Position struct {
	Symbol       string
	Quantity     float64
	EntryPrice   float64
	EntryDate    time.Time
	CurrentPrice float64
	Side         Side
	Sector       string
	StopLoss     float64
	PeakPrice    float64
}

// MarketValue is the absolute dollar value of the position at its current
// price.
func (p *Position) MarketValue() float64 {
	value := p.Quantity * p.CurrentPrice
	if value < 0 {
		return -value
	}
	return value
}

// TradeProposal describes a position change submitted to CheckAll.
type TradeProposal struct {
	Symbol   string
	Sector   string
	Value    float64 // absolute dollar value of the proposed position
	Quantity float64
	Side     Side
}

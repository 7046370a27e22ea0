package sizing

// PositionType classifies the outcome of a sizing calculation.
type PositionType string

const (
	PositionFull     PositionType = "full"
	PositionReduced  PositionType = "reduced"
	PositionRejected PositionType = "rejected"
)

// PositionSize is the immutable result of one sizing calculation.
type PositionSize struct {
	Shares     float64
	Value      float64 // dollar value of the position
	Weight     float64 // fraction of capital, in [0,1] for full/reduced
	RiskAmount float64 // dollars at risk if the stop is hit
	Type       PositionType
	Reason     string // populated whenever Type != PositionFull
}

// Sizer converts available capital, the current price and a signal strength
// into a position size. SignalStrength is a conviction multiplier, [0,1] by
// convention; it scales the resulting size linearly.
type Sizer interface {
	CalculateSize(capital, price, signalStrength float64) PositionSize
}

// rejected builds a zero-share result with the given reason.
func rejected(reason string) PositionSize {
	return PositionSize{Type: PositionRejected, Reason: reason}
}

// validateInputs rejects malformed capital/price before any sizing math.
func validateInputs(capital, price float64) (PositionSize, bool) {
	if capital <= 0 {
		return rejected("capital must be positive"), false
	}
	if price <= 0 {
		return rejected("price must be positive"), false
	}
	return PositionSize{}, true
}

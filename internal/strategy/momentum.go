package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// MomentumGenerator signals in the direction of the trailing rate of change,
// with conviction proportional to its size. fullStrength is the absolute
// rate of change at which conviction saturates at 1.
type MomentumGenerator struct {
	lookback     int
	fullStrength float64
	allowShort   bool
}

func NewMomentumGenerator(lookback int, fullStrength float64, allowShort bool) (*MomentumGenerator, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if fullStrength <= 0 {
		return nil, fmt.Errorf("full-strength threshold must be positive, got %.4f", fullStrength)
	}
	return &MomentumGenerator{
		lookback:     lookback,
		fullStrength: fullStrength,
		allowShort:   allowShort,
	}, nil
}

func (g *MomentumGenerator) Generate(bars []types.OHLCV) ([]float64, error) {
	if len(bars) == 0 {
		return nil, errors.New("no market data provided")
	}

	signals := make([]float64, len(bars))
	for i := g.lookback; i < len(bars); i++ {
		base := bars[i-g.lookback].Close
		if base <= 0 {
			continue
		}
		roc := bars[i].Close/base - 1
		if roc < 0 && !g.allowShort {
			continue
		}

		conviction := math.Min(math.Abs(roc)/g.fullStrength, 1)
		if roc > 0 {
			signals[i] = conviction
		} else if roc < 0 {
			signals[i] = -conviction
		}
	}
	return signals, nil
}

func (g *MomentumGenerator) GetName() string {
	return "Momentum"
}

func (g *MomentumGenerator) Reset() {
	// no state survives between Generate calls
}

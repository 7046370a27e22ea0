package strategy

import (
	"errors"
	"fmt"

	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// SMACrossGenerator signals long while the fast moving average is above the
// slow one and (optionally) short while it is below.
type SMACrossGenerator struct {
	fastPeriod int
	slowPeriod int
	allowShort bool
}

func NewSMACrossGenerator(fastPeriod, slowPeriod int, allowShort bool) (*SMACrossGenerator, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 {
		return nil, fmt.Errorf("moving average periods must be positive, got %d/%d", fastPeriod, slowPeriod)
	}
	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("fast period %d must be shorter than slow period %d", fastPeriod, slowPeriod)
	}
	return &SMACrossGenerator{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		allowShort: allowShort,
	}, nil
}

func (g *SMACrossGenerator) Generate(bars []types.OHLCV) ([]float64, error) {
	if len(bars) == 0 {
		return nil, errors.New("no market data provided")
	}

	signals := make([]float64, len(bars))
	var fastSum, slowSum float64

	for i, bar := range bars {
		fastSum += bar.Close
		if i >= g.fastPeriod {
			fastSum -= bars[i-g.fastPeriod].Close
		}
		slowSum += bar.Close
		if i >= g.slowPeriod {
			slowSum -= bars[i-g.slowPeriod].Close
		}

		// warmup: not enough bars for the slow average yet
		if i < g.slowPeriod-1 {
			continue
		}

		fast := fastSum / float64(g.fastPeriod)
		slow := slowSum / float64(g.slowPeriod)
		switch {
		case fast > slow:
			signals[i] = 1
		case fast < slow && g.allowShort:
			signals[i] = -1
		}
	}
	return signals, nil
}

func (g *SMACrossGenerator) GetName() string {
	return "SMA Crossover"
}

func (g *SMACrossGenerator) Reset() {
	// no state survives between Generate calls
}

package types

import (
	"fmt"
	"time"
)

// OHLCV is a single price bar for a fixed time interval.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Ticker is a point-in-time price quote for a symbol.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is an account balance for a single asset.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// ValidateBars checks the preconditions the simulator assumes: strictly
// increasing timestamps and internally consistent OHLC values. A violation is
// a configuration error and aborts the run before any simulation work.
func ValidateBars(bars []OHLCV) error {
	for i, bar := range bars {
		if bar.High < bar.Open || bar.High < bar.Low || bar.High < bar.Close {
			return fmt.Errorf("bar %d: high %.4f below open/low/close", i, bar.High)
		}
		if bar.Low > bar.Open || bar.Low > bar.Close {
			return fmt.Errorf("bar %d: low %.4f above open/close", i, bar.Low)
		}
		if bar.Close <= 0 {
			return fmt.Errorf("bar %d: non-positive close %.4f", i, bar.Close)
		}
		if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after previous bar %s",
				i, bar.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts the close-price series from a bar series.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// Returns computes simple bar-over-bar returns of the close series. The
// result has len(bars)-1 entries; fewer than two bars yields nil.
func Returns(bars []OHLCV) []float64 {
	if len(bars) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, bars[i].Close/prev-1)
	}
	return rets
}

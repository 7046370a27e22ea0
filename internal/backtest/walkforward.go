package backtest

import (
	"fmt"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// WalkForwardConfig partitions a series into successive (train, test)
// window pairs, all sized in bars. The roll step defaults to the test size
// so test windows tile the series without overlap.
type WalkForwardConfig struct {
	TrainBars int `json:"train_bars" yaml:"train_bars"`
	TestBars  int `json:"test_bars" yaml:"test_bars"`
	RollBars  int `json:"roll_bars" yaml:"roll_bars"`
}

// WalkForwardWindow is one fold: the index ranges of its train and test
// slices plus the simulation result of the test window. The train window is
// reserved for a parameter-fitting collaborator; the simulator never reads
// it.
type WalkForwardWindow struct {
	Index      int
	TrainStart int
	TrainEnd   int // exclusive
	TestStart  int
	TestEnd    int // exclusive
	Result     *Result
}

// RunWalkForward runs the simulator independently on each test window and
// returns one result per window, in window order. newSizer builds a fresh
// sizer per window so stateful sizers cannot leak history across folds.
func RunWalkForward(config Config, newSizer func() sizing.Sizer, bars []types.OHLCV, signals []float64, wf WalkForwardConfig) ([]WalkForwardWindow, error) {
	if wf.TrainBars <= 0 || wf.TestBars <= 0 {
		return nil, fmt.Errorf("train and test window sizes must be positive, got %d/%d", wf.TrainBars, wf.TestBars)
	}
	if len(signals) != len(bars) {
		return nil, fmt.Errorf("signal series length %d does not match %d bars", len(signals), len(bars))
	}
	roll := wf.RollBars
	if roll <= 0 {
		roll = wf.TestBars
	}

	var windows []WalkForwardWindow
	for start, index := 0, 0; ; start, index = start+roll, index+1 {
		trainEnd := start + wf.TrainBars
		testEnd := trainEnd + wf.TestBars
		if testEnd > len(bars) {
			break
		}

		engine := NewEngine(config, newSizer())
		result, err := engine.Run(bars[trainEnd:testEnd], signals[trainEnd:testEnd])
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", index, err)
		}

		windows = append(windows, WalkForwardWindow{
			Index:      index,
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
			Result:     result,
		})
	}
	return windows, nil
}

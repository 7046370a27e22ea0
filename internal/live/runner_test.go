package live

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/internal/broker"
	"github.com/ducminhle1904/quant-backtest/internal/risk"
	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/internal/strategy"
)

func permissiveLimits() risk.Limits {
	limits := risk.DefaultLimits()
	limits.MaxPositionSize = 1.0
	limits.MaxDrawdown = 0.99
	limits.MaxDailyLoss = 0.99
	return limits
}

func newTestRunner(t *testing.T) (*Runner, *broker.PaperBroker) {
	t.Helper()

	paper, err := broker.NewPaperBroker(10000, 0, 0)
	require.NoError(t, err)

	gen, err := strategy.NewMomentumGenerator(1, 0.10, false)
	require.NoError(t, err)

	manager, err := risk.NewManager(permissiveLimits(), 10000)
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	runner, err := NewRunner(Config{
		Symbol:       "BTCUSDT",
		PollInterval: time.Minute,
		Lookback:     10,
	}, paper, gen, sizing.NewFixedFractionalSizer(0.05, 0.05, 1.0), manager, nil, log)
	require.NoError(t, err)
	return runner, paper
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{}, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	paper, err := broker.NewPaperBroker(10000, 0, 0)
	require.NoError(t, err)
	_, err = NewRunner(Config{Symbol: "X", PollInterval: time.Second, Lookback: 5}, paper, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestRunner_EntersLongOnPositiveSignal(t *testing.T) {
	runner, paper := newTestRunner(t)
	ctx := context.Background()

	paper.UpdatePrice("BTCUSDT", 100)
	require.NoError(t, runner.tick(ctx))
	assert.Zero(t, runner.position)

	// +5% move: half conviction against the 10% saturation
	paper.UpdatePrice("BTCUSDT", 105)
	require.NoError(t, runner.tick(ctx))
	assert.Greater(t, runner.position, 0.0)
	assert.Greater(t, paper.Position("BTCUSDT"), 0.0)
}

func TestRunner_ExitsWhenSignalFades(t *testing.T) {
	runner, paper := newTestRunner(t)
	ctx := context.Background()

	paper.UpdatePrice("BTCUSDT", 100)
	require.NoError(t, runner.tick(ctx))
	paper.UpdatePrice("BTCUSDT", 105)
	require.NoError(t, runner.tick(ctx))
	require.Greater(t, runner.position, 0.0)

	// flat bar: momentum drops to zero, position is closed
	paper.UpdatePrice("BTCUSDT", 105)
	require.NoError(t, runner.tick(ctx))
	assert.Zero(t, runner.position)
	assert.Zero(t, paper.Position("BTCUSDT"))
}

func TestRunner_StopLossForcesExit(t *testing.T) {
	runner, paper := newTestRunner(t)
	ctx := context.Background()

	paper.UpdatePrice("BTCUSDT", 100)
	require.NoError(t, runner.tick(ctx))
	paper.UpdatePrice("BTCUSDT", 105)
	require.NoError(t, runner.tick(ctx))
	require.Greater(t, runner.position, 0.0)

	// 10% drop crosses the 5% fixed stop before the signal flips
	paper.UpdatePrice("BTCUSDT", 94.5)
	require.NoError(t, runner.tick(ctx))
	assert.Zero(t, runner.position)
	assert.Zero(t, paper.Position("BTCUSDT"))
}

func TestRunner_RunStopsOnContextCancel(t *testing.T) {
	runner, paper := newTestRunner(t)
	paper.UpdatePrice("BTCUSDT", 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancellation")
	}
}

package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
)

func twoAssetFixture() []AssetSeries {
	return []AssetSeries{
		{
			Symbol:  "BTC",
			Bars:    makeBars(100, 100, 110, 121, 121),
			Signals: []float64{0, 1, 1, 1, 0},
			Weight:  3,
		},
		{
			Symbol:  "ETH",
			Bars:    makeBars(50, 50, 49, 48, 48),
			Signals: []float64{0, 1, 1, 1, 0},
			Weight:  1,
		},
	}
}

func TestRunMultiAsset_WeightsNormalized(t *testing.T) {
	combined, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, twoAssetFixture(), 2)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, combined.Weights["BTC"], 1e-9)
	assert.InDelta(t, 0.25, combined.Weights["ETH"], 1e-9)

	// each asset starts from its allocated slice of capital
	assert.InDelta(t, 75000.0, combined.PerAsset["BTC"].StartBalance, 1e-9)
	assert.InDelta(t, 25000.0, combined.PerAsset["ETH"].StartBalance, 1e-9)
}

func TestRunMultiAsset_ZeroWeightsMeanEqual(t *testing.T) {
	assets := twoAssetFixture()
	assets[0].Weight = 0
	assets[1].Weight = 0

	combined, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, assets, 2)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, combined.Weights["BTC"], 1e-9)
	assert.InDelta(t, 0.5, combined.Weights["ETH"], 1e-9)
}

func TestRunMultiAsset_RejectsNegativeWeight(t *testing.T) {
	assets := twoAssetFixture()
	assets[1].Weight = -1

	_, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, assets, 2)
	assert.Error(t, err)
}

func TestRunMultiAsset_RejectsDuplicateSymbol(t *testing.T) {
	assets := twoAssetFixture()
	assets[1].Symbol = "BTC"

	_, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, assets, 2)
	assert.Error(t, err)
}

func TestRunMultiAsset_PortfolioReturnIsWeightedSum(t *testing.T) {
	combined, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, twoAssetFixture(), 2)
	require.NoError(t, err)

	btc := combined.PerAsset["BTC"].Returns()
	eth := combined.PerAsset["ETH"].Returns()
	require.Len(t, combined.Returns, len(btc))

	for i, ret := range combined.Returns {
		assert.InDelta(t, 0.75*btc[i]+0.25*eth[i], ret, 1e-12)
	}

	// combined curve starts at total capital and compounds the blended returns
	require.NotEmpty(t, combined.EquityCurve)
	assert.InDelta(t, 100000.0, combined.EquityCurve[0].Equity, 1e-9)
	level := 100000.0
	for i, ret := range combined.Returns {
		level *= 1 + ret
		assert.InDelta(t, level, combined.EquityCurve[i+1].Equity, 1e-6)
	}
}

func TestRunMultiAsset_TradesMergedDeterministically(t *testing.T) {
	first, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, twoAssetFixture(), 4)
	require.NoError(t, err)
	second, err := RunMultiAsset(testConfig(), func() sizing.Sizer { return allInSizer() }, twoAssetFixture(), 1)
	require.NoError(t, err)

	require.Len(t, first.Trades, 2)
	assert.Equal(t, first.Trades, second.Trades)

	// same entry bar: ties break by symbol
	assert.Equal(t, "BTC", first.Trades[0].Symbol)
	assert.Equal(t, "ETH", first.Trades[1].Symbol)
}

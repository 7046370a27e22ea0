package backtest

import (
	"fmt"
	"sort"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// AssetSeries is one asset's input to a multi-asset run. Weight is the
// capital allocation; zero weights across the board mean equal weighting.
type AssetSeries struct {
	Symbol  string
	Bars    []types.OHLCV
	Signals []float64
	Weight  float64
}

// MultiAssetResult combines independent per-asset simulations into one
// portfolio view.
type MultiAssetResult struct {
	PerAsset    map[string]*Result
	Weights     map[string]float64
	EquityCurve []EquityPoint
	Returns     []float64
	Trades      []Trade // merged, tagged with their originating symbol
	Metrics     PerformanceMetrics
}

// RunMultiAsset runs one independent simulation per asset with capital
// pre-allocated by normalized weights, then combines per-asset returns into
// a single weighted portfolio series. Assets run in parallel on the worker
// pool; results merge in symbol order so output is deterministic.
func RunMultiAsset(config Config, newSizer func() sizing.Sizer, assets []AssetSeries, workers int) (*MultiAssetResult, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets to simulate")
	}

	weights, err := normalizeWeights(assets)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(assets))
	for _, asset := range assets {
		assetConfig := config
		assetConfig.Symbol = asset.Symbol
		assetConfig.InitialCapital = config.InitialCapital * weights[asset.Symbol]
		jobs = append(jobs, Job{
			ID:      asset.Symbol,
			Config:  assetConfig,
			Bars:    asset.Bars,
			Signals: asset.Signals,
			Sizer:   newSizer(),
		})
	}

	jobResults := RunJobs(jobs, workers)

	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbols = append(symbols, asset.Symbol)
	}
	sort.Strings(symbols)

	combined := &MultiAssetResult{
		PerAsset: make(map[string]*Result, len(symbols)),
		Weights:  weights,
	}
	for _, symbol := range symbols {
		res, ok := jobResults[symbol]
		if !ok {
			return nil, fmt.Errorf("missing result for %s", symbol)
		}
		if res.Err != nil {
			return nil, fmt.Errorf("asset %s: %w", symbol, res.Err)
		}
		combined.PerAsset[symbol] = res.Result
		combined.Trades = append(combined.Trades, res.Result.Trades...)
	}

	sort.SliceStable(combined.Trades, func(i, j int) bool {
		if !combined.Trades[i].EntryTime.Equal(combined.Trades[j].EntryTime) {
			return combined.Trades[i].EntryTime.Before(combined.Trades[j].EntryTime)
		}
		return combined.Trades[i].Symbol < combined.Trades[j].Symbol
	})

	combined.Returns, combined.EquityCurve = combineReturns(config.InitialCapital, symbols, weights, combined.PerAsset)
	combined.Metrics = CalculateMetrics(combined.Returns, combined.EquityCurve, combined.Trades, nil, config.RiskFreeRate)
	return combined, nil
}

// normalizeWeights scales positive weights to sum to one; all-zero input
// falls back to equal weighting. Negative weights are malformed.
func normalizeWeights(assets []AssetSeries) (map[string]float64, error) {
	weights := make(map[string]float64, len(assets))
	total := 0.0
	for _, asset := range assets {
		if asset.Weight < 0 {
			return nil, fmt.Errorf("asset %s: negative weight %.4f", asset.Symbol, asset.Weight)
		}
		if _, dup := weights[asset.Symbol]; dup {
			return nil, fmt.Errorf("duplicate asset symbol %s", asset.Symbol)
		}
		weights[asset.Symbol] = asset.Weight
		total += asset.Weight
	}

	if total == 0 {
		equal := 1.0 / float64(len(assets))
		for _, asset := range assets {
			weights[asset.Symbol] = equal
		}
		return weights, nil
	}
	for symbol := range weights {
		weights[symbol] /= total
	}
	return weights, nil
}

// combineReturns builds the weighted portfolio return series from the
// per-asset equity curves, truncated to the shortest series, and compounds
// it into the combined equity curve.
func combineReturns(initialCapital float64, symbols []string, weights map[string]float64, perAsset map[string]*Result) ([]float64, []EquityPoint) {
	minLen := -1
	for _, symbol := range symbols {
		n := len(perAsset[symbol].Returns())
		if minLen < 0 || n < minLen {
			minLen = n
		}
	}
	if minLen <= 0 {
		return nil, nil
	}

	assetReturns := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		assetReturns[symbol] = perAsset[symbol].Returns()
	}

	reference := perAsset[symbols[0]].EquityCurve

	portfolio := make([]float64, minLen)
	equity := make([]EquityPoint, 0, minLen+1)
	equity = append(equity, EquityPoint{Timestamp: reference[0].Timestamp, Equity: initialCapital})
	level := initialCapital
	for i := 0; i < minLen; i++ {
		ret := 0.0
		for _, symbol := range symbols {
			ret += weights[symbol] * assetReturns[symbol][i]
		}
		portfolio[i] = ret
		level *= 1 + ret
		equity = append(equity, EquityPoint{Timestamp: reference[i+1].Timestamp, Equity: level})
	}
	return portfolio, equity
}

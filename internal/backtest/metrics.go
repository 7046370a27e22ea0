package backtest

import (
	"math"

	"github.com/montanaflynn/stats"
)

const (
	tradingDaysPerYear  = 252
	tradingDaysPerMonth = 21
	epsilon             = 1e-10

	// benchmark stats need at least this many aligned observations
	minBenchmarkObs = 10
	// Monte Carlo and the t-test degrade below two observations
	minReturnObs = 2
)

// PerformanceMetrics is the fixed statistics record computed from a finished
// run. Degenerate input yields the zero value rather than an error.
type PerformanceMetrics struct {
	// returns
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	// risk
	Volatility        float64 `json:"volatility"`
	DownsideDeviation float64 `json:"downside_deviation"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	SortinoRatio      float64 `json:"sortino_ratio"`
	CalmarRatio       float64 `json:"calmar_ratio"`
	RecoveryFactor    float64 `json:"recovery_factor"`

	// drawdown
	MaxDrawdown         float64 `json:"max_drawdown"`          // non-positive fraction of the peak
	MaxDrawdownDuration int     `json:"max_drawdown_duration"` // longest underwater run, in bars

	// trades
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	GrossProfit      float64 `json:"gross_profit"`
	GrossLoss        float64 `json:"gross_loss"`
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`
	AvgHoldingPeriod float64 `json:"avg_holding_period"`

	// distribution
	TStatistic float64 `json:"t_statistic"`
	PValue     float64 `json:"p_value"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"` // excess kurtosis

	// benchmark-relative
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	Correlation      float64 `json:"correlation"`
	InformationRatio float64 `json:"information_ratio"`

	RiskFreeRate float64 `json:"risk_free_rate"`
}

// neutralMetrics is what degenerate input produces: all zeros except the
// neutral benchmark values.
func neutralMetrics(riskFree float64) PerformanceMetrics {
	return PerformanceMetrics{Beta: 1, RiskFreeRate: riskFree}
}

// CalculateMetrics computes the full performance record from a return
// series, an equity curve, a trade ledger and an optional benchmark return
// series. It is a pure function; identical inputs give identical output.
func CalculateMetrics(returns []float64, equity []EquityPoint, trades []Trade, benchmark []float64, riskFree float64) PerformanceMetrics {
	if len(returns) < minReturnObs {
		m := neutralMetrics(riskFree)
		fillTradeStats(&m, trades)
		return m
	}

	m := PerformanceMetrics{RiskFreeRate: riskFree, Beta: 1}

	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	if first > 0 {
		m.TotalReturn = last/first - 1
	}
	n := float64(len(returns))
	m.AnnualReturn = math.Pow(1+m.TotalReturn, tradingDaysPerYear/n) - 1

	sd, _ := stats.StandardDeviationSample(returns)
	m.Volatility = sd * math.Sqrt(tradingDaysPerYear)

	m.DownsideDeviation = downsideDeviation(returns)

	if m.Volatility > epsilon {
		m.SharpeRatio = (m.AnnualReturn - riskFree) / m.Volatility
	}
	if m.DownsideDeviation > epsilon {
		m.SortinoRatio = (m.AnnualReturn - riskFree) / m.DownsideDeviation
	}

	m.MaxDrawdown, m.MaxDrawdownDuration = maxDrawdown(equity)
	if m.MaxDrawdown != 0 {
		m.CalmarRatio = m.AnnualReturn / math.Abs(m.MaxDrawdown)
		m.RecoveryFactor = m.TotalReturn / math.Abs(m.MaxDrawdown)
	}

	fillTradeStats(&m, trades)
	fillDistributionStats(&m, returns)
	fillBenchmarkStats(&m, returns, benchmark)
	return m
}

// downsideDeviation annualizes the standard deviation of the negative-return
// subset, floored at epsilon when no negative returns exist.
func downsideDeviation(returns []float64) float64 {
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) < 2 {
		return epsilon
	}
	sd, err := stats.StandardDeviationSample(negatives)
	if err != nil || sd < epsilon {
		return epsilon
	}
	return sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the deepest peak-to-trough decline as a non-positive
// fraction, plus the longest consecutive underwater run in bars.
func maxDrawdown(equity []EquityPoint) (float64, int) {
	maxDD := 0.0
	peak := 0.0
	longest := 0
	current := 0
	for _, point := range equity {
		if point.Equity >= peak {
			peak = point.Equity
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
		if peak > 0 {
			dd := (point.Equity - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, longest
}

func fillTradeStats(m *PerformanceMetrics, trades []Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var largestWin, largestLoss float64
	var holdingSum float64
	for _, trade := range trades {
		holdingSum += float64(trade.HoldingPeriod)
		if trade.PnL > 0 {
			m.WinningTrades++
			m.GrossProfit += trade.PnL
			if trade.PnL > largestWin {
				largestWin = trade.PnL
			}
		} else {
			m.LosingTrades++
			m.GrossLoss += math.Abs(trade.PnL)
			if math.Abs(trade.PnL) > largestLoss {
				largestLoss = math.Abs(trade.PnL)
			}
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.LargestWin = largestWin
	m.LargestLoss = largestLoss
	m.AvgHoldingPeriod = holdingSum / float64(m.TotalTrades)

	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.LosingTrades)
	}

	grossLoss := m.GrossLoss
	if grossLoss < epsilon {
		grossLoss = epsilon
	}
	if m.GrossProfit > 0 {
		m.ProfitFactor = m.GrossProfit / grossLoss
	}
}

// fillDistributionStats computes the one-sample significance test of the
// mean daily return against zero (normal approximation for the p-value) and
// the shape moments of the return distribution.
func fillDistributionStats(m *PerformanceMetrics, returns []float64) {
	mean, _ := stats.Mean(returns)
	sd, _ := stats.StandardDeviationSample(returns)
	n := float64(len(returns))

	if sd > epsilon {
		m.TStatistic = mean / (sd / math.Sqrt(n))
		m.PValue = math.Erfc(math.Abs(m.TStatistic) / math.Sqrt2)
	} else {
		m.PValue = 1
	}

	// population central moments
	var m2, m3, m4 float64
	for _, r := range returns {
		d := r - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m3 /= n
	m4 /= n

	if m2 > epsilon {
		m.Skewness = m3 / math.Pow(m2, 1.5)
		m.Kurtosis = m4/(m2*m2) - 3
	}
}

// fillBenchmarkStats computes beta, alpha, correlation and information ratio
// against an aligned benchmark return series. Fewer than minBenchmarkObs
// aligned observations leaves the neutral values (alpha 0, beta 1, corr 0).
func fillBenchmarkStats(m *PerformanceMetrics, returns, benchmark []float64) {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < minBenchmarkObs {
		return
	}
	strat := returns[:n]
	bench := benchmark[:n]

	benchVar, _ := stats.SampleVariance(bench)
	if benchVar <= epsilon {
		return
	}
	cov, _ := stats.Covariance(strat, bench)
	m.Beta = cov / benchVar

	meanStrat, _ := stats.Mean(strat)
	meanBench, _ := stats.Mean(bench)
	m.Alpha = (meanStrat - m.Beta*meanBench) * tradingDaysPerYear

	corr, err := stats.Correlation(strat, bench)
	if err == nil {
		m.Correlation = corr
	}

	diffs := make([]float64, n)
	for i := range diffs {
		diffs[i] = strat[i] - bench[i]
	}
	meanDiff, _ := stats.Mean(diffs)
	sdDiff, _ := stats.StandardDeviationSample(diffs)
	if sdDiff > epsilon {
		m.InformationRatio = meanDiff * tradingDaysPerYear / (sdDiff * math.Sqrt(tradingDaysPerYear))
	}
}

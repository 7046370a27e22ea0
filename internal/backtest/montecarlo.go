package backtest

import (
	"math/rand"

	"github.com/montanaflynn/stats"
)

// minMonteCarloTrades is the smallest ledger worth resampling; below it the
// percentile statistics are meaningless.
const minMonteCarloTrades = 10

// DefaultMonteCarloSeed keeps repeated runs reproducible unless the caller
// injects a different seed.
const DefaultMonteCarloSeed = 42

// MonteCarloSummary holds the percentile statistics of the resampled equity
// paths. An insufficient base run yields Trials == 0 and a Warning instead
// of an error.
type MonteCarloSummary struct {
	Trials       int
	TotalReturns []float64 // per-trial compounded total return
	P5           float64
	P25          float64
	P50          float64
	P75          float64
	P95          float64
	ProbProfit   float64

	// per-trial max drawdown percentiles; path order matters here even
	// though the compounded total does not
	DrawdownP50 float64
	DrawdownP5  float64

	Warning string
}

// RunMonteCarlo reorders the base run's trade returns uniformly at random
// (without replacement) to build alternative equity paths via compounding,
// and reports percentile statistics of the outcomes. The seed makes the
// shuffle sequence, and therefore every percentile, reproducible.
func RunMonteCarlo(base *Result, trials int, seed int64) *MonteCarloSummary {
	tradeReturns := base.TradeReturns()
	if len(tradeReturns) < minMonteCarloTrades {
		return &MonteCarloSummary{
			Warning: "insufficient trades for Monte Carlo simulation: need at least 10",
		}
	}
	if trials <= 0 {
		trials = 1000
	}

	rng := rand.New(rand.NewSource(seed))
	shuffled := make([]float64, len(tradeReturns))
	copy(shuffled, tradeReturns)

	totals := make([]float64, 0, trials)
	drawdowns := make([]float64, 0, trials)
	profitable := 0

	for trial := 0; trial < trials; trial++ {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		equity := 1.0
		peak := 1.0
		maxDD := 0.0
		for _, ret := range shuffled {
			equity *= 1 + ret
			if equity > peak {
				peak = equity
			} else if peak > 0 {
				dd := (equity - peak) / peak
				if dd < maxDD {
					maxDD = dd
				}
			}
		}

		total := equity - 1
		totals = append(totals, total)
		drawdowns = append(drawdowns, maxDD)
		if total > 0 {
			profitable++
		}
	}

	summary := &MonteCarloSummary{
		Trials:       trials,
		TotalReturns: totals,
		ProbProfit:   float64(profitable) / float64(trials),
	}
	summary.P5, _ = stats.Percentile(totals, 5)
	summary.P25, _ = stats.Percentile(totals, 25)
	summary.P50, _ = stats.Percentile(totals, 50)
	summary.P75, _ = stats.Percentile(totals, 75)
	summary.P95, _ = stats.Percentile(totals, 95)
	summary.DrawdownP50, _ = stats.Percentile(drawdowns, 50)
	summary.DrawdownP5, _ = stats.Percentile(drawdowns, 5)
	return summary
}

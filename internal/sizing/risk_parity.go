package sizing

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// RiskParitySizer allocates a multi-asset book so each asset contributes
// equal risk, then rescales the whole book to a target portfolio volatility.
// ComputeWeights must run before per-asset sizing calls.
type RiskParitySizer struct {
	targetVol   float64
	maxLeverage float64

	weights map[string]float64
	scale   float64
}

// NewRiskParitySizer creates a risk-parity sizer.
func NewRiskParitySizer(targetVol, maxLeverage float64) *RiskParitySizer {
	return &RiskParitySizer{
		targetVol:   targetVol,
		maxLeverage: maxLeverage,
		weights:     make(map[string]float64),
		scale:       1,
	}
}

// ComputeWeights derives inverse-volatility weights from per-asset return
// series, normalizes them, and rescales so the portfolio volatility implied
// by the annualized covariance matrix matches the target. Assets with too
// little history are dropped.
func (s *RiskParitySizer) ComputeWeights(returnsBySymbol map[string][]float64) (map[string]float64, error) {
	symbols := make([]string, 0, len(returnsBySymbol))
	for symbol, rets := range returnsBySymbol {
		if len(rets) >= 2 {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no asset has enough return history for risk parity")
	}
	sort.Strings(symbols)

	// inverse-volatility weights, normalized
	inverseVol := make(map[string]float64, len(symbols))
	total := 0.0
	for _, symbol := range symbols {
		sd, err := stats.StandardDeviationSample(returnsBySymbol[symbol])
		if err != nil {
			return nil, fmt.Errorf("volatility for %s: %w", symbol, err)
		}
		vol := sd * math.Sqrt(tradingDaysPerYear)
		if vol < minVolatility {
			vol = minVolatility
		}
		inverseVol[symbol] = 1 / vol
		total += 1 / vol
	}
	weights := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = inverseVol[symbol] / total
	}

	portVol := s.portfolioVolatility(symbols, weights, returnsBySymbol)
	s.scale = 1
	if portVol > 0 && s.targetVol > 0 {
		s.scale = s.targetVol / portVol
		if s.scale > s.maxLeverage {
			s.scale = s.maxLeverage
		}
	}

	s.weights = weights
	return weights, nil
}

// portfolioVolatility computes sqrt(w' Sigma w) with an annualized sample
// covariance matrix, truncating every series to the shortest length so the
// pairwise covariances stay aligned.
func (s *RiskParitySizer) portfolioVolatility(symbols []string, weights map[string]float64, returnsBySymbol map[string][]float64) float64 {
	minLen := math.MaxInt
	for _, symbol := range symbols {
		if n := len(returnsBySymbol[symbol]); n < minLen {
			minLen = n
		}
	}
	if minLen < 2 {
		return 0
	}

	variance := 0.0
	for _, a := range symbols {
		for _, b := range symbols {
			cov, err := stats.Covariance(
				returnsBySymbol[a][:minLen],
				returnsBySymbol[b][:minLen],
			)
			if err != nil {
				continue
			}
			variance += weights[a] * weights[b] * cov * tradingDaysPerYear
		}
	}
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// CalculateSizeFor sizes one asset of the book from its precomputed weight.
func (s *RiskParitySizer) CalculateSizeFor(symbol string, capital, price, signalStrength float64) PositionSize {
	if result, ok := validateInputs(capital, price); !ok {
		return result
	}
	weight, ok := s.weights[symbol]
	if !ok {
		return rejected(fmt.Sprintf("no risk-parity weight computed for %s", symbol))
	}

	positionValue := capital * weight * s.scale * signalStrength
	return PositionSize{
		Shares:     positionValue / price,
		Value:      positionValue,
		Weight:     weight * s.scale,
		RiskAmount: positionValue * s.targetVol,
		Type:       PositionFull,
		Reason:     "",
	}
}

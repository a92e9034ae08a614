// Copyright 2023-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics computes comparative performance statistics over aligned
// return series. All standard deviations and variances are sample
// statistics (n-1 denominator), consistent with gonum/stat defaults.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Result is a named metric outcome: a finite float or the explicit
// not-computable sentinel. Degenerate inputs (zero variance, too few
// observations) produce the sentinel, never an error.
type Result struct {
	Value float64
	OK    bool
}

// NotComputable is the sentinel for degenerate inputs
func NotComputable() Result {
	return Result{Value: math.NaN(), OK: false}
}

// Value wraps a computed float, demoting NaN and Inf to not-computable
func Value(v float64) Result {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotComputable()
	}
	return Result{Value: v, OK: true}
}

// Calculator computes one float metric from a pair of aligned return series
type Calculator interface {
	Calculate(stockReturns, benchReturns []float64) Result
}

// SharpeRatio is the average return earned in excess of the risk-free rate
// per unit of volatility, annualized by sqrt(periods per year)
type SharpeRatio struct {
	RiskFreeRate   float64
	PeriodsPerYear float64
}

func (calc *SharpeRatio) Calculate(stockReturns, _ []float64) Result {
	if len(stockReturns) < 2 {
		return NotComputable()
	}

	stdev := stat.StdDev(stockReturns, nil)
	if stdev == 0 {
		return NotComputable()
	}

	rfPeriod := calc.RiskFreeRate / calc.PeriodsPerYear
	excess := stat.Mean(stockReturns, nil) - rfPeriod

	return Value(excess / stdev * math.Sqrt(calc.PeriodsPerYear))
}

// Beta measures the volatility of an instrument compared to the benchmark:
// cov(stock, bench) / var(bench)
type Beta struct{}

func (calc *Beta) Calculate(stockReturns, benchReturns []float64) Result {
	if len(stockReturns) < 2 || len(stockReturns) != len(benchReturns) {
		return NotComputable()
	}

	variance := stat.Variance(benchReturns, nil)
	if variance == 0 {
		return NotComputable()
	}

	return Value(stat.Covariance(stockReturns, benchReturns, nil) / variance)
}

// Alpha is the per-period excess return over the CAPM expected return:
// mean(stock) - (rf + beta*(mean(bench) - rf)). A not-computable Beta
// propagates.
type Alpha struct {
	RiskFreeRate   float64
	PeriodsPerYear float64
}

func (calc *Alpha) Calculate(stockReturns, benchReturns []float64) Result {
	beta := (&Beta{}).Calculate(stockReturns, benchReturns)
	if !beta.OK {
		return NotComputable()
	}

	rfPeriod := calc.RiskFreeRate / calc.PeriodsPerYear
	expected := rfPeriod + beta.Value*(stat.Mean(benchReturns, nil)-rfPeriod)

	return Value(stat.Mean(stockReturns, nil) - expected)
}

// InformationRatio is the mean active return over its tracking error,
// annualized by sqrt(periods per year)
type InformationRatio struct {
	PeriodsPerYear float64
}

func (calc *InformationRatio) Calculate(stockReturns, benchReturns []float64) Result {
	if len(stockReturns) < 2 || len(stockReturns) != len(benchReturns) {
		return NotComputable()
	}

	active := make([]float64, len(stockReturns))
	for idx := range stockReturns {
		active[idx] = stockReturns[idx] - benchReturns[idx]
	}

	stdev := stat.StdDev(active, nil)
	if stdev == 0 {
		return NotComputable()
	}

	return Value(stat.Mean(active, nil) / stdev * math.Sqrt(calc.PeriodsPerYear))
}

// RelativeStrength is the ratio of cumulative growth: prod(1+stock) over
// prod(1+bench)
type RelativeStrength struct{}

func (calc *RelativeStrength) Calculate(stockReturns, benchReturns []float64) Result {
	if len(stockReturns) == 0 || len(stockReturns) != len(benchReturns) {
		return NotComputable()
	}

	stockGrowth := 1.0
	benchGrowth := 1.0
	for idx := range stockReturns {
		stockGrowth *= 1.0 + stockReturns[idx]
		benchGrowth *= 1.0 + benchReturns[idx]
	}

	if benchGrowth == 0 {
		return NotComputable()
	}

	return Value(stockGrowth / benchGrowth)
}

// TotalReturn is the cumulative compound return: prod(1+stock) - 1
type TotalReturn struct{}

func (calc *TotalReturn) Calculate(stockReturns, _ []float64) Result {
	if len(stockReturns) == 0 {
		return NotComputable()
	}

	growth := 1.0
	for _, ret := range stockReturns {
		growth *= 1.0 + ret
	}

	return Value(growth - 1.0)
}

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

package metrics

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Metric name constants for the default registry
const (
	MetricSharpeRatio      = "Sharpe Ratio"
	MetricBeta             = "Beta"
	MetricAlpha            = "Alpha"
	MetricInformationRatio = "Information Ratio"
	MetricRelativeStrength = "Relative Strength"
	MetricTotalReturn      = "Total Return"
)

// Engine dispatches every registered calculator over one pair of aligned
// return series and aggregates the results. A failure inside one calculator
// is recorded as that metric's not-computable result and never aborts the
// remaining metrics.
//
// The registry is instance-owned; register additional calculators with
// AddCalculator before first use. Engine is not safe for concurrent
// registration, but CalculateAll may run concurrently once registration is
// done.
type Engine struct {
	calculators map[string]Calculator
}

// NewEngine builds an engine with the default calculator registry
func NewEngine(riskFreeRate, periodsPerYear float64) *Engine {
	engine := &Engine{calculators: make(map[string]Calculator, 6)}
	engine.AddCalculator(MetricSharpeRatio, &SharpeRatio{RiskFreeRate: riskFreeRate, PeriodsPerYear: periodsPerYear})
	engine.AddCalculator(MetricBeta, &Beta{})
	engine.AddCalculator(MetricAlpha, &Alpha{RiskFreeRate: riskFreeRate, PeriodsPerYear: periodsPerYear})
	engine.AddCalculator(MetricInformationRatio, &InformationRatio{PeriodsPerYear: periodsPerYear})
	engine.AddCalculator(MetricRelativeStrength, &RelativeStrength{})
	engine.AddCalculator(MetricTotalReturn, &TotalReturn{})
	return engine
}

// AddCalculator registers or overrides a named calculator
func (engine *Engine) AddCalculator(name string, calculator Calculator) {
	engine.calculators[name] = calculator
}

// Names returns the registered metric names in sorted order; consumers use
// this for stable result columns
func (engine *Engine) Names() []string {
	names := make([]string, 0, len(engine.calculators))
	for name := range engine.calculators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateAll runs every registered calculator. The result map always holds
// one entry per registered metric.
func (engine *Engine) CalculateAll(stockReturns, benchReturns []float64) map[string]Result {
	results := make(map[string]Result, len(engine.calculators))
	for name, calculator := range engine.calculators {
		results[name] = engine.safeCalculate(name, calculator, stockReturns, benchReturns)
	}
	return results
}

func (engine *Engine) safeCalculate(name string, calculator Calculator, stockReturns, benchReturns []float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("Panic", r).Str("Metric", name).Msg("calculator panicked")
			res = NotComputable()
		}
	}()

	return calculator.Calculate(stockReturns, benchReturns)
}

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

package metrics_test

import (
	"context"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-screener/data"
	"github.com/penny-vault/pv-screener/metrics"
)

type panickyCalculator struct{}

func (calc *panickyCalculator) Calculate(_, _ []float64) metrics.Result {
	panic("boom")
}

type divideByLengthCalculator struct{}

func (calc *divideByLengthCalculator) Calculate(stockReturns, _ []float64) metrics.Result {
	return metrics.Value(1.0 / float64(len(stockReturns)))
}

var _ = Describe("Metric engine", func() {
	var engine *metrics.Engine

	BeforeEach(func() {
		engine = metrics.NewEngine(0.03, 252)
	})

	Describe("When listing registered metrics", func() {
		It("returns the default registry in sorted order", func() {
			names := engine.Names()
			Expect(names).To(ContainElements(
				metrics.MetricSharpeRatio,
				metrics.MetricBeta,
				metrics.MetricAlpha,
				metrics.MetricInformationRatio,
				metrics.MetricRelativeStrength,
				metrics.MetricTotalReturn,
			))
			Expect(sort.StringsAreSorted(names)).To(BeTrue())
		})
	})

	Describe("When computing all metrics", func() {
		It("returns one result per registered metric", func() {
			stock := []float64{0.01, -0.02, 0.03, 0.00, 0.01}
			bench := []float64{0.008, -0.015, 0.025, 0.001, 0.009}

			results := engine.CalculateAll(stock, bench)
			Expect(results).To(HaveLen(len(engine.Names())))
			for _, name := range engine.Names() {
				Expect(results).To(HaveKey(name))
			}
		})

		It("marks degenerate metrics not computable without dropping the rest", func() {
			stock := []float64{0.01, -0.02, 0.03}
			flat := []float64{0.01, 0.01, 0.01}

			results := engine.CalculateAll(stock, flat)
			Expect(results[metrics.MetricBeta].OK).To(BeFalse())
			Expect(results[metrics.MetricAlpha].OK).To(BeFalse())
			Expect(results[metrics.MetricSharpeRatio].OK).To(BeTrue())
			Expect(results[metrics.MetricTotalReturn].OK).To(BeTrue())
		})
	})

	Describe("When a custom calculator is registered", func() {
		It("appears in the registry and the results", func() {
			engine.AddCalculator("Custom", &divideByLengthCalculator{})

			results := engine.CalculateAll([]float64{0.01, 0.02}, []float64{0.01, 0.02})
			Expect(results).To(HaveKey("Custom"))
			Expect(results["Custom"].Value).To(BeNumerically("~", 0.5, 1e-12))
		})
	})

	Describe("When a calculator panics", func() {
		It("contains the failure to that metric", func() {
			engine.AddCalculator("Broken", &panickyCalculator{})

			stock := []float64{0.01, -0.02, 0.03, 0.00, 0.01}
			results := engine.CalculateAll(stock, stock)
			Expect(results["Broken"].OK).To(BeFalse())
			Expect(results[metrics.MetricSharpeRatio].OK).To(BeTrue())
			Expect(results[metrics.MetricTotalReturn].OK).To(BeTrue())
		})
	})
})

var _ = Describe("Metric dispatcher", func() {
	It("computes metrics for every instrument", func() {
		engine := metrics.NewEngine(0, 252)
		dispatcher := metrics.NewDispatcher(engine, 4)

		aligned := map[data.Instrument]metrics.Aligned{}
		for _, instrument := range []data.Instrument{"AAPL", "MSFT", "NVDA", "AMZN"} {
			aligned[instrument] = metrics.Aligned{
				Stock: []float64{0.01, -0.02, 0.03, 0.00, 0.01},
				Bench: []float64{0.008, -0.015, 0.025, 0.001, 0.009},
			}
		}

		results := dispatcher.ComputeAll(context.Background(), aligned)
		Expect(results).To(HaveLen(4))
		for instrument := range aligned {
			Expect(results[instrument]).To(HaveLen(len(engine.Names())))
		}
	})

	It("produces identical results for identical inputs", func() {
		engine := metrics.NewEngine(0, 252)
		dispatcher := metrics.NewDispatcher(engine, 2)

		aligned := map[data.Instrument]metrics.Aligned{
			"A": {Stock: []float64{0.01, 0.02, -0.01}, Bench: []float64{0.005, 0.015, -0.005}},
			"B": {Stock: []float64{0.01, 0.02, -0.01}, Bench: []float64{0.005, 0.015, -0.005}},
		}

		results := dispatcher.ComputeAll(context.Background(), aligned)
		Expect(results["A"]).To(Equal(results["B"]))
	})

	It("returns no results under an already canceled context", func() {
		engine := metrics.NewEngine(0, 252)
		dispatcher := metrics.NewDispatcher(engine, 2)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := dispatcher.ComputeAll(ctx, map[data.Instrument]metrics.Aligned{
			"AAPL": {Stock: []float64{0.01, 0.02}, Bench: []float64{0.01, 0.02}},
		})
		Expect(results).To(BeEmpty())
	})
})

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

package validator_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-screener/data"
	"github.com/penny-vault/pv-screener/validator"
)

func buildSeries(values ...float64) *data.Series {
	nyc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	observations := make([]data.EOD, len(values))
	for idx, val := range values {
		observations[idx] = data.EOD{
			Date:  time.Date(2023, 1, 1, 0, 0, 0, 0, nyc).AddDate(0, 0, idx),
			Close: val,
		}
	}
	return data.NewSeries(observations)
}

// steadySeries produces n gently varying positive prices with no anomalies
func steadySeries(n int) *data.Series {
	values := make([]float64, n)
	for idx := range values {
		values[idx] = 100 * math.Pow(1.001, float64(idx)) * (1 + 0.01*math.Sin(float64(idx)))
	}
	return buildSeries(values...)
}

var _ = Describe("Identifier sanitization", func() {
	DescribeTable("normalizing raw symbols",
		func(raw string, expected data.Instrument, ok bool) {
			instrument, err := validator.Sanitize(raw)
			if ok {
				Expect(err).To(BeNil())
				Expect(instrument).To(Equal(expected))
			} else {
				Expect(err).To(MatchError(data.ErrInvalidIdentifier))
			}
		},

		Entry("upper-cases and trims whitespace", " aapl ", data.Instrument("AAPL"), true),
		Entry("accepts class share dots", "brk.b", data.Instrument("BRK.B"), true),
		Entry("accepts hyphens", "BF-B", data.Instrument("BF-B"), true),
		Entry("accepts digits", "3M", data.Instrument("3M"), true),
		Entry("rejects dollar signs", "A$PL", data.Instrument(""), false),
		Entry("rejects embedded spaces", "AA PL", data.Instrument(""), false),
		Entry("rejects the empty string", "", data.Instrument(""), false),
		Entry("rejects pure whitespace", "   ", data.Instrument(""), false),
		Entry("rejects SQL-ish input", "AAPL;DROP TABLE", data.Instrument(""), false),
	)
})

var _ = Describe("Series validation", func() {
	var policy validator.Policy

	BeforeEach(func() {
		policy = validator.DefaultPolicy()
	})

	Describe("When the series is missing or short", func() {
		It("fails a nil series", func() {
			res := validator.Validate(nil, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
			Expect(res.Reason).To(ContainSubstring("no data"))
		})

		It("fails an empty series", func() {
			res := validator.Validate(&data.Series{}, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
		})

		It("fails a series below the minimum length", func() {
			res := validator.Validate(steadySeries(policy.MinDataPoints-1), "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
			Expect(res.Reason).To(ContainSubstring("insufficient data points"))
		})

		It("passes a series at the minimum length", func() {
			res := validator.Validate(steadySeries(policy.MinDataPoints), "AAPL", policy)
			Expect(res.Pass).To(BeTrue())
		})
	})

	Describe("When observations are missing", func() {
		It("fails when the missing fraction exceeds the policy", func() {
			series := steadySeries(60)
			for idx := 0; idx < 8; idx++ {
				series.Values[idx*7] = math.NaN()
			}
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
			Expect(res.Reason).To(ContainSubstring("missing"))
		})

		It("tolerates a small missing fraction", func() {
			series := steadySeries(60)
			series.Values[10] = math.NaN()
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeTrue())
		})
	})

	Describe("When prices are anomalous", func() {
		It("fails on any non-positive price", func() {
			series := steadySeries(60)
			series.Values[30] = -1
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
			Expect(res.Reason).To(ContainSubstring("non-positive"))
		})

		It("fails on a zero price", func() {
			series := steadySeries(60)
			series.Values[30] = 0
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
		})

		It("fails when anomalies exceed the budget", func() {
			series := steadySeries(120)
			// four separate frozen stretches
			for _, start := range []int{10, 40, 70, 100} {
				for idx := start; idx < start+policy.MaxFlatRun; idx++ {
					series.Values[idx] = series.Values[start]
				}
			}
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeFalse())
			Expect(res.Reason).To(ContainSubstring("anomalies"))
		})

		It("passes with anomalies at or under the budget", func() {
			series := steadySeries(120)
			for idx := 10; idx < 10+policy.MaxFlatRun; idx++ {
				series.Values[idx] = series.Values[10]
			}
			res := validator.Validate(series, "AAPL", policy)
			Expect(res.Pass).To(BeTrue())
			Expect(res.Anomalies).NotTo(BeEmpty())
		})
	})
})

var _ = Describe("Anomaly detection", func() {
	var policy validator.Policy

	BeforeEach(func() {
		policy = validator.DefaultPolicy()
	})

	It("flags extreme single-period jumps at their position", func() {
		series := steadySeries(100)
		series.Values[50] = series.Values[49] * 3

		anomalies := validator.DetectAnomalies(series, policy)
		positions := []int{}
		for _, anomaly := range anomalies {
			if anomaly.Kind == validator.AnomalyExtremeJump {
				positions = append(positions, anomaly.Position)
			}
		}
		Expect(positions).To(ContainElement(50))
	})

	It("flags flat runs at the run start", func() {
		series := steadySeries(100)
		for idx := 20; idx < 20+policy.MaxFlatRun; idx++ {
			series.Values[idx] = series.Values[20]
		}

		anomalies := validator.DetectAnomalies(series, policy)
		Expect(anomalies).To(ContainElement(validator.Anomaly{Position: 20, Kind: validator.AnomalyFlatRun}))
	})

	It("ignores runs shorter than the threshold", func() {
		series := steadySeries(100)
		for idx := 20; idx < 20+policy.MaxFlatRun-1; idx++ {
			series.Values[idx] = series.Values[20]
		}

		anomalies := validator.DetectAnomalies(series, policy)
		Expect(anomalies).To(BeEmpty())
	})

	It("finds nothing in a clean series", func() {
		Expect(validator.DetectAnomalies(steadySeries(100), policy)).To(BeEmpty())
	})
})

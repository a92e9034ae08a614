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

package data

import (
	"math"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-screener/common"
)

var _ = ginkgo.Describe("Series blob codec", func() {
	var nyc *time.Location

	ginkgo.BeforeEach(func() {
		nyc = common.GetTimezone()
	})

	ginkgo.It("round-trips values exactly", func() {
		series := &Series{
			Dates: []time.Time{
				time.Date(2023, 6, 1, 0, 0, 0, 0, nyc),
				time.Date(2023, 6, 2, 0, 0, 0, 0, nyc),
				time.Date(2023, 6, 3, 0, 0, 0, 0, nyc),
			},
			Values: []float64{101.37, 0.1 + 0.2, 1e-12},
		}

		payload, err := encodeSeries(series)
		Expect(err).To(BeNil())

		decoded, err := decodeSeries(payload, nyc)
		Expect(err).To(BeNil())
		Expect(decoded.Values).To(Equal(series.Values))
		for idx := range series.Dates {
			Expect(decoded.Dates[idx].Equal(series.Dates[idx])).To(BeTrue())
		}
	})

	ginkgo.It("round-trips NaN observations through JSON null", func() {
		series := &Series{
			Dates: []time.Time{
				time.Date(2023, 6, 1, 0, 0, 0, 0, nyc),
				time.Date(2023, 6, 2, 0, 0, 0, 0, nyc),
			},
			Values: []float64{100, math.NaN()},
		}

		payload, err := encodeSeries(series)
		Expect(err).To(BeNil())

		decoded, err := decodeSeries(payload, nyc)
		Expect(err).To(BeNil())
		Expect(decoded.Values[0]).To(Equal(100.0))
		Expect(math.IsNaN(decoded.Values[1])).To(BeTrue())
	})

	ginkgo.It("rejects payloads that are not lz4 compressed JSON", func() {
		_, err := decodeSeries([]byte("not a valid payload"), nyc)
		Expect(err).To(MatchError(ErrCacheCorrupt))
	})

	ginkgo.It("rejects truncated payloads", func() {
		series := &Series{
			Dates:  []time.Time{time.Date(2023, 6, 1, 0, 0, 0, 0, nyc)},
			Values: []float64{100},
		}
		payload, err := encodeSeries(series)
		Expect(err).To(BeNil())

		_, err = decodeSeries(payload[:len(payload)/2], nyc)
		Expect(err).To(MatchError(ErrCacheCorrupt))
	})
})

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

package data_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-screener/data"
)

var _ = Describe("Fetcher", func() {
	var (
		ctx      context.Context
		store    *data.Store
		provider *fakeProvider
		fetcher  *data.Fetcher
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = data.OpenStore(filepath.Join(GinkgoT().TempDir(), "prices.db"), 16)
		Expect(err).To(BeNil())

		provider = &fakeProvider{}
		manager := data.NewManager(store, provider, time.Hour)
		manager.SetRetryPolicy(time.Millisecond, 1)
		fetcher = data.NewFetcher(manager, 4, time.Minute)
	})

	AfterEach(func() {
		Expect(store.Close()).To(BeNil())
	})

	It("returns a result for every requested instrument", func() {
		results := fetcher.FetchAll(ctx, []data.Instrument{"AAPL", "MSFT", "NVDA"}, ival(1, 10))
		Expect(results).To(HaveLen(3))
		for _, instrument := range []data.Instrument{"AAPL", "MSFT", "NVDA"} {
			res := results[instrument]
			Expect(res.Err).To(BeNil())
			Expect(res.Series.Len()).To(Equal(9))
		}
	})

	It("contains a failing instrument to its own result", func() {
		provider.failFor = map[data.Instrument]error{"BAD": errors.New("no such symbol")}

		results := fetcher.FetchAll(ctx, []data.Instrument{"AAPL", "BAD"}, ival(1, 10))
		Expect(results).To(HaveLen(2))
		Expect(results["AAPL"].Err).To(BeNil())
		Expect(results["AAPL"].Series.Len()).To(Equal(9))
		Expect(results["BAD"].Err).To(MatchError(data.ErrDataUnavailable))
	})

	It("records a timeout as context.DeadlineExceeded", func() {
		provider.delay = 200 * time.Millisecond

		manager := data.NewManager(store, provider, time.Hour)
		manager.SetRetryPolicy(time.Millisecond, 1)
		quick := data.NewFetcher(manager, 4, 10*time.Millisecond)

		results := quick.FetchAll(ctx, []data.Instrument{"SLOW"}, ival(1, 10))
		Expect(results["SLOW"].Err).To(MatchError(context.DeadlineExceeded))
	})

	It("honors a canceled parent context", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		results := fetcher.FetchAll(canceled, []data.Instrument{"AAPL"}, ival(1, 10))
		Expect(results).To(HaveLen(1))
	})
})

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
	"context"
	"path/filepath"
	"sync"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// countingProvider is the minimal internal test double; it serves one price
// per calendar day and counts calls
type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Fetch(_ context.Context, _ Instrument, period *Interval) ([]EOD, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	observations := []EOD{}
	for dt := period.Begin; dt.Before(period.End); dt = dt.AddDate(0, 0, 1) {
		observations = append(observations, EOD{Date: dt, Close: 100 + float64(dt.Day())})
	}
	return observations, nil
}

var _ = ginkgo.Describe("Corrupt cache entries", func() {
	var (
		ctx      context.Context
		store    *Store
		provider *countingProvider
		manager  *Manager
		interval *Interval
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = OpenStore(filepath.Join(ginkgo.GinkgoT().TempDir(), "prices.db"), 16)
		Expect(err).To(BeNil())

		provider = &countingProvider{}
		manager = NewManager(store, provider, time.Hour)

		nyc := store.tz
		interval = NewInterval(
			time.Date(2023, 6, 1, 0, 0, 0, 0, nyc),
			time.Date(2023, 6, 10, 0, 0, 0, 0, nyc))
	})

	ginkgo.AfterEach(func() {
		Expect(store.Close()).To(BeNil())
	})

	corruptAll := func() {
		// bypass the typed API so the payload no longer decodes
		_, err := store.db.Exec(`UPDATE price_cache SET payload = ?`, []byte("garbage"))
		Expect(err).To(BeNil())
		store.hot.Purge()
	}

	ginkgo.It("surfaces ErrCacheCorrupt from Load", func() {
		_, err := manager.Get(ctx, "AAPL", interval)
		Expect(err).To(BeNil())
		corruptAll()

		entries, err := store.Overlapping("AAPL", interval, time.Hour)
		Expect(err).To(BeNil())
		Expect(entries).To(HaveLen(1))

		_, err = store.Load(entries[0])
		Expect(err).To(MatchError(ErrCacheCorrupt))
	})

	ginkgo.It("evicts the corrupt entry and refetches once", func() {
		_, err := manager.Get(ctx, "AAPL", interval)
		Expect(err).To(BeNil())
		Expect(provider.calls).To(Equal(1))
		corruptAll()

		series, err := manager.Get(ctx, "AAPL", interval)
		Expect(err).To(BeNil())
		Expect(series.Len()).To(Equal(9))
		Expect(provider.calls).To(Equal(2))

		// the refetched entry replaced the corrupt one
		entries, err := store.Overlapping("AAPL", interval, time.Hour)
		Expect(err).To(BeNil())
		Expect(entries).To(HaveLen(1))

		loaded, err := store.Load(entries[0])
		Expect(err).To(BeNil())
		Expect(loaded.Len()).To(Equal(9))
	})

	ginkgo.It("serves the hot cache without touching the corrupted blob", func() {
		_, err := manager.Get(ctx, "AAPL", interval)
		Expect(err).To(BeNil())

		// corrupt only the persistent payload; the hot cache still holds the
		// decoded series
		_, err = store.db.Exec(`UPDATE price_cache SET payload = ?`, []byte("garbage"))
		Expect(err).To(BeNil())

		series, err := manager.Get(ctx, "AAPL", interval)
		Expect(err).To(BeNil())
		Expect(series.Len()).To(Equal(9))
		Expect(provider.calls).To(Equal(1))
	})
})

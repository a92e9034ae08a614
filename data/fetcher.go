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
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// FetchResult holds one instrument's outcome from a batch fetch; partial
// failure is encoded here, never raised as a batch-wide fault
type FetchResult struct {
	Series *Series
	Err    error
}

// Fetcher fans out Manager.Get calls across many instruments under a bounded
// worker pool. Each instrument's task is independent and carries its own
// timeout; a slow or failed instrument degrades only its own result.
type Fetcher struct {
	manager     *Manager
	concurrency int
	timeout     time.Duration
}

func NewFetcher(manager *Manager, concurrency int, timeout time.Duration) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4 * runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Fetcher{
		manager:     manager,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// FetchAll issues one Get per instrument and returns once every task has
// completed, succeeded or failed. The result map holds an entry for every
// requested instrument.
func (fetcher *Fetcher) FetchAll(ctx context.Context, instruments []Instrument, interval *Interval) map[Instrument]FetchResult {
	results := make(map[Instrument]FetchResult, len(instruments))
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(fetcher.concurrency)

	for _, instrument := range instruments {
		instrument := instrument
		group.Go(func() error {
			taskCtx, cancel := context.WithTimeout(ctx, fetcher.timeout)
			defer cancel()

			series, err := fetcher.manager.Get(taskCtx, instrument, interval)
			if err != nil {
				log.Warn().Err(err).Str("Instrument", string(instrument)).Msg("could not fetch instrument")
			}

			mu.Lock()
			results[instrument] = FetchResult{Series: series, Err: err}
			mu.Unlock()
			return nil
		})
	}

	// tasks never return errors; failures live in the per-instrument results
	_ = group.Wait()

	return results
}

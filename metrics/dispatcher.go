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
	"context"
	"runtime"
	"sync"

	"github.com/penny-vault/pv-screener/data"
	"golang.org/x/sync/errgroup"
)

// Aligned holds one instrument's return series paired with the benchmark
// returns over the same date index
type Aligned struct {
	Stock []float64
	Bench []float64
}

// Dispatcher runs Engine.CalculateAll across many instruments under a
// CPU-bound worker pool. Tasks are pure functions with no shared mutable
// state; completion order is unspecified and results are keyed by
// instrument.
type Dispatcher struct {
	engine  *Engine
	workers int
}

func NewDispatcher(engine *Engine, workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Dispatcher{engine: engine, workers: workers}
}

// ComputeAll computes every registered metric for every instrument. A
// failure for one instrument is isolated to its own entry.
func (dispatcher *Dispatcher) ComputeAll(ctx context.Context, aligned map[data.Instrument]Aligned) map[data.Instrument]map[string]Result {
	results := make(map[data.Instrument]map[string]Result, len(aligned))
	var mu sync.Mutex

	var group errgroup.Group
	group.SetLimit(dispatcher.workers)

	for instrument, pair := range aligned {
		instrument, pair := instrument, pair
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			computed := dispatcher.engine.CalculateAll(pair.Stock, pair.Bench)

			mu.Lock()
			results[instrument] = computed
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()

	return results
}

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
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Manager resolves (instrument, interval) requests against the cache store,
// fetching only the missing sub-ranges from the market data provider. Fetches
// for a given (instrument, sub-range) key are single-flight: concurrent
// requesters share one in-flight provider call.
type Manager struct {
	store    *Store
	provider Provider
	ttl      time.Duration

	retryBase   time.Duration
	maxAttempts uint64

	group singleflight.Group
}

func NewManager(store *Store, provider Provider, ttl time.Duration) *Manager {
	return &Manager{
		store:       store,
		provider:    provider,
		ttl:         ttl,
		retryBase:   250 * time.Millisecond,
		maxAttempts: 3,
	}
}

// SetRetryPolicy overrides the provider retry behavior: attempts total tries
// with exponential backoff starting at base
func (manager *Manager) SetRetryPolicy(base time.Duration, attempts uint64) {
	if attempts < 1 {
		attempts = 1
	}
	manager.retryBase = base
	manager.maxAttempts = attempts
}

// Get returns a continuous price series spanning interval. Covered, fresh
// cache entries are reused; each contiguous missing sub-range costs exactly
// one provider call. Newly fetched sub-ranges are persisted before returning.
func (manager *Manager) Get(ctx context.Context, instrument Instrument, interval *Interval) (*Series, error) {
	if err := interval.Valid(); err != nil {
		return nil, ErrInvalidTimeRange
	}

	subLog := log.With().Str("Instrument", string(instrument)).Object("Period", interval).Logger()

	entries, missing, err := manager.store.Missing(instrument, interval, manager.ttl)
	if err != nil {
		return nil, err
	}

	parts := make([]*Series, 0, len(entries)+len(missing))
	refetch := []*Interval{}

	for _, entry := range entries {
		series, err := manager.store.Load(entry)
		switch {
		case errors.Is(err, ErrCacheCorrupt):
			subLog.Warn().Int64("EntryID", entry.ID).Msg("evicting corrupt cache entry")
			if err := manager.store.Evict(entry); err != nil {
				subLog.Error().Err(err).Int64("EntryID", entry.ID).Msg("could not evict cache entry")
			}
			if overlap := interval.Intersect(entry.Period); overlap != nil {
				refetch = append(refetch, overlap)
			}
		case err != nil:
			return nil, err
		default:
			parts = append(parts, series)
		}
	}

	for _, sub := range missing {
		series, err := manager.fetchSubRange(ctx, instrument, sub)
		if err != nil {
			subLog.Warn().Err(err).Object("SubRange", sub).Msg("could not fetch missing sub-range")
			return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, instrument, err)
		}
		parts = append(parts, series)
	}

	// a corrupt entry gets exactly one refetch attempt, no backoff
	for _, sub := range refetch {
		observations, err := manager.provider.Fetch(ctx, instrument, sub)
		if err != nil {
			subLog.Warn().Err(err).Object("SubRange", sub).Msg("refetch after corrupt entry failed")
			return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, instrument, err)
		}
		series := NewSeries(observations)
		if err := manager.store.Save(instrument, sub, series, SourceProvider); err != nil {
			subLog.Error().Err(err).Msg("could not persist refetched series")
		}
		parts = append(parts, series)
	}

	return MergeSeries(interval, parts...), nil
}

// TTL returns the staleness window applied to cache entries
func (manager *Manager) TTL() time.Duration {
	return manager.ttl
}

func (manager *Manager) fetchSubRange(ctx context.Context, instrument Instrument, sub *Interval) (*Series, error) {
	key := fmt.Sprintf("%s|%d|%d", instrument, sub.Begin.Unix(), sub.End.Unix())

	val, err, shared := manager.group.Do(key, func() (interface{}, error) {
		series, err := manager.fetchWithRetry(ctx, instrument, sub)
		if err != nil {
			return nil, err
		}
		if err := manager.store.Save(instrument, sub, series, SourceProvider); err != nil {
			log.Error().Err(err).Str("Instrument", string(instrument)).Msg("could not persist fetched series")
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug().Str("Key", key).Msg("coalesced concurrent fetch")
	}

	return val.(*Series), nil
}

func (manager *Manager) fetchWithRetry(ctx context.Context, instrument Instrument, sub *Interval) (*Series, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = manager.retryBase
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var observations []EOD
	operation := func() error {
		obs, err := manager.provider.Fetch(ctx, instrument, sub)
		if err != nil {
			if errors.Is(err, ErrProviderFailure) {
				return err
			}
			return backoff.Permanent(err)
		}
		observations = obs
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, manager.maxAttempts-1), ctx))
	if err != nil {
		return nil, err
	}

	return NewSeries(observations), nil
}
